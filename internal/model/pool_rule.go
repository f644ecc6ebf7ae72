package model

import "hide-mail-go/internal/rulename"

// PoolRule is a routing rule managed by this service.
type PoolRule struct {
	ID             string        `json:"id"`
	Name           rulename.Name `json:"-"`
	MailboxAddress string        `json:"mailbox_address"`
	ForwardTarget  string        `json:"forward_target,omitempty"`
}

// Used reports whether the rule has been handed out under a label.
func (r PoolRule) Used() bool {
	return !r.Name.Unused()
}
