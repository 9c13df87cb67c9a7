package engine

type commandType int

const (
	cmdSubmit commandType = iota
	cmdOrders
	cmdRevokeAll
)

type command struct {
	typ   commandType
	order *Order   // used when typ == cmdSubmit
	resp  chan any // the owning worker sends the result back here
}
