package book

// Level is a single (price, amount) point on one side of an order book. A
// Level with Amount == 0 in an incoming delta means "delete the level at
// this price" — Side.Upsert is where that sentinel is interpreted.
type Level struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// ZeroLevel is the sentinel returned by Side.Best when a side has no levels.
var ZeroLevel = Level{}
