package models

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Customer  string `json:"customer"`
	Region    string `json:"region"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type Site struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Region    string `json:"region"`
	SiteType  string `json:"site_type"`
	Address   string `json:"address"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type PriceBook struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Vendor    string `json:"vendor"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	ItemCount int    `json:"item_count,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type PriceBookItem struct {
	ID          int     `json:"id"`
	PriceBookID string  `json:"price_book_id"`
	ItemCode    string  `json:"item_code"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	UOM         string  `json:"uom"`
	UnitPrice   float64 `json:"unit_price"`
}

// BOQ is a bill of quantities for one site. The grid itself lives in
// boq_rows and travels as CSV text or a csvgrid payload; the record here
// is the list-view metadata.
type BOQ struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	SiteID      string  `json:"site_id"`
	SiteName    string  `json:"site_name,omitempty"`
	PriceBookID string  `json:"price_book_id"`
	BOQType     string  `json:"boq_type"`
	Status      string  `json:"status"`
	TotalValue  float64 `json:"total_value"`
	RowCount    int     `json:"row_count,omitempty"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type PurchaseOrder struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	BOQID        string  `json:"boq_id"`
	Vendor       string  `json:"vendor"`
	Status       string  `json:"status"`
	ExpectedDate string  `json:"expected_date"`
	Notes        string  `json:"notes"`
	TotalValue   float64 `json:"total_value"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	Lines        []POLine `json:"lines,omitempty"`
}

type POLine struct {
	ID          int     `json:"id"`
	POID        string  `json:"po_id"`
	ItemCode    string  `json:"item_code"`
	Description string  `json:"description"`
	UOM         string  `json:"uom"`
	Qty         float64 `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
}

type RolloutSheet struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	SiteID      string `json:"site_id"`
	Phase       string `json:"phase"`
	Status      string `json:"status"`
	PlannedDate string `json:"planned_date"`
	ActualDate  string `json:"actual_date"`
	Owner       string `json:"owner"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type AuditEntry struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	IPAddress string `json:"ip_address,omitempty"`
	CreatedAt string `json:"created_at"`
}

type Notification struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	LastLogin   string `json:"last_login,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type APIKey struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Token     string `json:"token,omitempty"`
	Active    bool   `json:"active"`
	LastUsed  string `json:"last_used,omitempty"`
	CreatedAt string `json:"created_at"`
}

// DashboardData is the landing-page summary.
type DashboardData struct {
	Projects      int     `json:"projects"`
	Sites         int     `json:"sites"`
	BOQs          int     `json:"boqs"`
	BOQsDraft     int     `json:"boqs_draft"`
	BOQsApproved  int     `json:"boqs_approved"`
	OpenPOs       int     `json:"open_pos"`
	RolloutActive int     `json:"rollout_active"`
	BOQValue      float64 `json:"boq_value"`
}
