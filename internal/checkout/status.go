package checkout

type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusShipping  Status = "SHIPPING"
	StatusArrived   Status = "ARRIVED"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPlaced:    {StatusShipping: true, StatusCancelled: true},
	StatusShipping:  {StatusArrived: true},
	StatusArrived:   {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}
