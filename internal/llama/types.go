package llama

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Wire types for the DeFiLlama API. Responses are untrusted input:
// fields that arrive in an unexpected shape degrade to their zero
// value instead of failing the whole decode.

// ListedProtocol is one entry of the /protocols catalog.
type ListedProtocol struct {
	Slug           string  `json:"slug"`
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	ParentProtocol string  `json:"parentProtocol"`
	TVL            float64 `json:"tvl"`
}

// ProtocolDetail is the /protocol/{slug} response, reduced to the
// fields the pipeline consumes.
type ProtocolDetail struct {
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	URL              string             `json:"url"`
	Category         string             `json:"category"`
	TVL              []TVLEntry         `json:"tvl"`
	CurrentChainTVLs map[string]float64 `json:"currentChainTvls"`
	Raises           []Raise            `json:"raises"`
	Hallmarks        []HallmarkEntry    `json:"hallmarks"`
}

// TVLEntry is one point of the TVL history.
type TVLEntry struct {
	Date              int64   `json:"date"`
	TotalLiquidityUSD float64 `json:"totalLiquidityUSD"`
}

// Raise is one funding round. Amount is in USD millions upstream.
type Raise struct {
	Date           int64      `json:"date"`
	Round          string     `json:"round"`
	AmountMillions FlexFloat  `json:"amount"`
	LeadInvestors  []string   `json:"leadInvestors"`
	OtherInvestors []string   `json:"otherInvestors"`
	Valuation      FlexFloat  `json:"valuation"`
	Source         string     `json:"source"`
}

// HackRecord is one entry of the /hacks feed.
type HackRecord struct {
	Date           int64      `json:"date"`
	Name           string     `json:"name"`
	Classification string     `json:"classification"`
	Technique      string     `json:"technique"`
	AmountUSD      FlexFloat  `json:"amount"`
	ReturnedUSD    FlexFloat  `json:"returnedFunds"`
	Chains         StringList `json:"chain"`
	Source         string     `json:"source"`
}

// HallmarkEntry decodes the upstream [unix_ts, "event"] pair format.
// Malformed entries decode to the zero value and are filtered out by
// the caller.
type HallmarkEntry struct {
	Date  int64
	Event string
}

func (h *HallmarkEntry) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || len(raw) < 2 {
		*h = HallmarkEntry{}
		return nil
	}
	var ts FlexFloat
	if err := json.Unmarshal(raw[0], &ts); err != nil {
		*h = HallmarkEntry{}
		return nil
	}
	var event string
	if err := json.Unmarshal(raw[1], &event); err != nil {
		*h = HallmarkEntry{}
		return nil
	}
	h.Date = int64(ts)
	h.Event = event
	return nil
}

// FlexFloat decodes a number that may arrive as a JSON number, a
// quoted numeric string, or null.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// StringList decodes a value that may arrive as a single string or a
// list of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(s, "[") {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			*l = nil
			return nil
		}
		*l = list
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		*l = nil
		return nil
	}
	*l = StringList{one}
	return nil
}
