package model

// EventRecord is a decoded contract event as handed to handlers.
// Args holds the ABI arguments by name; integers are decimal strings and
// addresses, hashes and byte values are hex strings.
type EventRecord struct {
	ChainID     uint64                 `json:"chain_id"`
	Event       string                 `json:"event"`
	Address     string                 `json:"address"`
	BlockNumber uint64                 `json:"block_number"`
	BlockHash   string                 `json:"block_hash"`
	TxHash      string                 `json:"tx_hash"`
	TxIndex     uint64                 `json:"tx_index"`
	LogIndex    uint64                 `json:"log_index"`
	Removed     bool                   `json:"removed"`
	Args        map[string]interface{} `json:"args"`
	IngestedAt  string                 `json:"ingested_at"`
	Raw         *RawLogRef             `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// Arg returns the named argument.
func (r EventRecord) Arg(name string) (interface{}, bool) {
	if r.Args == nil {
		return nil, false
	}
	v, ok := r.Args[name]
	return v, ok
}

// ArgString returns the named argument if it is a string.
func (r EventRecord) ArgString(name string) string {
	v, ok := r.Arg(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
