package validation

// Common enum values - these MUST match the DB CHECK constraints in the
// schema. Transition rules (who may move to what) stay with their handler;
// only the value sets live here.
var (
	ValidBOQTypes        = []string{"installation", "civil", "electrical", "transmission"}
	ValidBOQStatuses     = []string{"draft", "submitted", "approved", "rejected"}
	ValidBookStatuses    = []string{"draft", "active", "retired"}
	ValidPOStatuses      = []string{"draft", "issued", "acknowledged", "delivered", "closed", "cancelled"}
	ValidProjectStatuses = []string{"active", "on_hold", "completed", "cancelled"}
	ValidSiteTypes       = []string{"macro", "micro", "rooftop", "indoor", "greenfield"}
	ValidSiteStatuses    = []string{"planned", "surveyed", "in_progress", "on_air", "accepted"}
	ValidRolloutPhases   = []string{"survey", "civil", "installation", "integration", "acceptance"}
	ValidRolloutStatuses = []string{"planned", "in_progress", "blocked", "done"}
	ValidRoles           = []string{"admin", "user", "readonly"}
)
