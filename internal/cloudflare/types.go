package cloudflare

// ResponseInfo is an error or message entry of the API envelope.
type ResponseInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ResultInfo carries pagination data of list responses.
type ResultInfo struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Count      int  `json:"count"`
	TotalCount *int `json:"total_count,omitempty"`
}

type envelope[T any] struct {
	Success    bool           `json:"success"`
	Errors     []ResponseInfo `json:"errors"`
	Messages   []ResponseInfo `json:"messages"`
	Result     T              `json:"result"`
	ResultInfo *ResultInfo    `json:"result_info,omitempty"`
}

// Matcher selects the messages a rule applies to.
type Matcher struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
}

// Action is what a rule does with matched messages.
type Action struct {
	Type  string   `json:"type"`
	Value []string `json:"value,omitempty"`
}

// Rule is an email routing rule.
type Rule struct {
	ID       string    `json:"id"`
	Tag      string    `json:"tag,omitempty"`
	Name     string    `json:"name"`
	Enabled  bool      `json:"enabled"`
	Priority int       `json:"priority"`
	Matchers []Matcher `json:"matchers"`
	Actions  []Action  `json:"actions"`
}

// MatchedAddress returns the value of the first literal "to" matcher.
func (r Rule) MatchedAddress() (string, bool) {
	for _, m := range r.Matchers {
		if m.Type == MatcherLiteral && m.Field == FieldTo {
			return m.Value, true
		}
	}
	return "", false
}

// ForwardTarget returns the first destination of the first forward action.
func (r Rule) ForwardTarget() (string, bool) {
	for _, a := range r.Actions {
		if a.Type == ActionForward && len(a.Value) > 0 {
			return a.Value[0], true
		}
	}
	return "", false
}

// RuleRequest is the body of rule create and update calls.
type RuleRequest struct {
	Name     string    `json:"name"`
	Enabled  bool      `json:"enabled"`
	Matchers []Matcher `json:"matchers"`
	Actions  []Action  `json:"actions"`
}

// ForwardRule builds a request matching mail sent to address and forwarding it to target.
func ForwardRule(name, address, target string) RuleRequest {
	return RuleRequest{
		Name:    name,
		Enabled: true,
		Matchers: []Matcher{
			{Type: MatcherLiteral, Field: FieldTo, Value: address},
		},
		Actions: []Action{
			{Type: ActionForward, Value: []string{target}},
		},
	}
}

// RulePage is one page of ListRules. TotalCount is nil when the API omits it.
type RulePage struct {
	Rules      []Rule
	TotalCount *int
}

// RoutingSettings is the zone's email routing state.
type RoutingSettings struct {
	ID          string `json:"id"`
	Tag         string `json:"tag"`
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	SkipWizard  bool   `json:"skip_wizard"`
	Synced      bool   `json:"synced"`
	AdminLocked bool   `json:"admin_locked"`
	Status      string `json:"status"`
}

// DestinationAddress is an account-level forwarding destination.
// Verified holds the verification timestamp and is nil until the owner confirms it.
type DestinationAddress struct {
	ID       string  `json:"id"`
	Tag      string  `json:"tag"`
	Email    string  `json:"email"`
	Verified *string `json:"verified"`
	Created  string  `json:"created,omitempty"`
	Modified string  `json:"modified,omitempty"`
}

// IsVerified reports whether the owner has confirmed the address.
func (d DestinationAddress) IsVerified() bool {
	return d.Verified != nil && *d.Verified != ""
}

const (
	MatcherLiteral = "literal"
	FieldTo        = "to"
	ActionForward  = "forward"

	// StatusReady is the routing status of a zone able to receive mail.
	StatusReady = "ready"
)
