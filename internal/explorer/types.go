package explorer

// Transfer is one incoming transfer as reported by the explorer API.
type Transfer struct {
	TxHash      string
	FromAddress string
	ToAddress   string
	AmountNano  int64
	Memo        string
	// TimestampMs is the block timestamp in milliseconds.
	TimestampMs int64
}

type transactionResponse struct {
	Data    []transactionItem `json:"data"`
	Success bool              `json:"success"`
	Meta    responseMeta      `json:"meta"`
}

type transactionItem struct {
	TxID           string `json:"tx_id"`
	FromAddress    string `json:"from"`
	ToAddress      string `json:"to"`
	Amount         int64  `json:"amount"`
	Memo           string `json:"memo"`
	BlockTimestamp int64  `json:"block_timestamp"`
}

type responseMeta struct {
	PageSize    int           `json:"page_size"`
	Fingerprint string        `json:"fingerprint"`
	Links       responseLinks `json:"links"`
}

type responseLinks struct {
	Next string `json:"next"`
}
