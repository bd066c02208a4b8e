package paytabs

// Request and response shapes mirror the PayTabs hosted payment page
// JSON contract. Only the fields the platform reads or writes are mapped.

// CustomerDetails describes the paying customer on a payment page request.
type CustomerDetails struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Street1 string `json:"street1,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	IP      string `json:"ip,omitempty"`
}

// PaymentPageRequest creates a hosted payment page.
type PaymentPageRequest struct {
	ProfileID       int             `json:"profile_id"`
	TranType        string          `json:"tran_type"`
	TranClass       string          `json:"tran_class"`
	CartID          string          `json:"cart_id"`
	CartDescription string          `json:"cart_description"`
	CartCurrency    string          `json:"cart_currency"`
	CartAmount      float64         `json:"cart_amount"`
	Callback        string          `json:"callback,omitempty"`
	Return          string          `json:"return,omitempty"`
	HideShipping    bool            `json:"hide_shipping,omitempty"`
	Customer        CustomerDetails `json:"customer_details"`
}

// PaymentPageResponse carries the gateway reference and the hosted page URL.
type PaymentPageResponse struct {
	TranRef     string `json:"tran_ref"`
	RedirectURL string `json:"redirect_url"`
	CartID      string `json:"cart_id"`

	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// QueryRequest looks up a transaction by gateway reference.
type QueryRequest struct {
	ProfileID int    `json:"profile_id"`
	TranRef   string `json:"tran_ref"`
}

// PaymentResult is the gateway's verdict on a transaction.
type PaymentResult struct {
	ResponseStatus  string `json:"response_status"`
	ResponseCode    string `json:"response_code"`
	ResponseMessage string `json:"response_message"`
	TransactionTime string `json:"transaction_time,omitempty"`
}

// TransactionResponse is returned by query and refund calls.
type TransactionResponse struct {
	TranRef         string        `json:"tran_ref"`
	PreviousTranRef string        `json:"previous_tran_ref,omitempty"`
	TranType        string        `json:"tran_type"`
	CartID          string        `json:"cart_id"`
	CartCurrency    string        `json:"cart_currency"`
	CartAmount      string        `json:"cart_amount"`
	PaymentResult   PaymentResult `json:"payment_result"`

	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// RefundRequest reverses a previously captured transaction.
type RefundRequest struct {
	ProfileID       int     `json:"profile_id"`
	TranType        string  `json:"tran_type"`
	TranClass       string  `json:"tran_class"`
	TranRef         string  `json:"tran_ref"`
	CartID          string  `json:"cart_id"`
	CartDescription string  `json:"cart_description"`
	CartCurrency    string  `json:"cart_currency"`
	CartAmount      float64 `json:"cart_amount"`
}

// Authorised reports whether the gateway approved the transaction.
func (r PaymentResult) Authorised() bool {
	return r.ResponseStatus == "A"
}
