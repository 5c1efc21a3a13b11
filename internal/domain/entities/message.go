package entities

// Message is the rendered subject/body pair for one recipient.
type Message struct {
	Subject string
	Body    string
}

// DispatchReport summarizes one message dispatch pass over a scored row set.
type DispatchReport struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}
