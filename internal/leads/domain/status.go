package domain

const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusQualified = "qualified"
	StatusProposal  = "proposal"
	StatusWon       = "won"
	StatusLost      = "lost"
)

var knownStatuses = map[string]struct{}{
	StatusNew:       {},
	StatusContacted: {},
	StatusQualified: {},
	StatusProposal:  {},
	StatusWon:       {},
	StatusLost:      {},
}

func IsKnownStatus(status string) bool {
	_, ok := knownStatuses[status]
	return ok
}
