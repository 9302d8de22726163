package models

import (
	"fmt"
	"sort"
	"strings"
)

// Exchange segments understood by the SmartAPI stream.
const (
	ExchangeNSECM = 1
	ExchangeNSEFO = 2
	ExchangeBSECM = 3
	ExchangeBSEFO = 4
	ExchangeMCXFO = 5
	ExchangeNCXFO = 7
	ExchangeCDEFO = 13
)

// Subscription modes. Quote carries OHLC, volume and book totals.
const (
	ModeLTP       = 1
	ModeQuote     = 2
	ModeSnapQuote = 3
	ModeDepth     = 4
)

// Stream actions.
const (
	ActionUnsubscribe = 0
	ActionSubscribe   = 1
)

// MTokenGroup is a set of tokens on one exchange segment.
type MTokenGroup struct {
	ExchangeType int      `json:"exchangeType"`
	Tokens       []string `json:"tokens"`
}

// MSubscriptionSpec describes what a single upstream session subscribes to.
// Two specs with the same Key are served by the same session.
type MSubscriptionSpec struct {
	CorrelationID string
	Mode          int
	Segments      []MTokenGroup
}

// Key returns a canonical identity: mode plus sorted, de-duplicated tokens per segment.
// CorrelationID is not part of the identity.
func (s MSubscriptionSpec) Key() string {
	bySegment := make(map[int]map[string]struct{})
	for _, g := range s.Segments {
		set, ok := bySegment[g.ExchangeType]
		if !ok {
			set = make(map[string]struct{})
			bySegment[g.ExchangeType] = set
		}
		for _, t := range g.Tokens {
			set[t] = struct{}{}
		}
	}

	segments := make([]int, 0, len(bySegment))
	for seg := range bySegment {
		segments = append(segments, seg)
	}
	sort.Ints(segments)

	var b strings.Builder
	fmt.Fprintf(&b, "m%d", s.Mode)
	for _, seg := range segments {
		tokens := make([]string, 0, len(bySegment[seg]))
		for t := range bySegment[seg] {
			tokens = append(tokens, t)
		}
		sort.Strings(tokens)
		fmt.Fprintf(&b, "|%d:%s", seg, strings.Join(tokens, ","))
	}
	return b.String()
}

// Contains reports whether token on exchangeType is part of the spec.
func (s MSubscriptionSpec) Contains(exchangeType int, token string) bool {
	for _, g := range s.Segments {
		if g.ExchangeType != exchangeType {
			continue
		}
		for _, t := range g.Tokens {
			if t == token {
				return true
			}
		}
	}
	return false
}

// TokenCount returns the number of tokens across all segments.
func (s MSubscriptionSpec) TokenCount() int {
	n := 0
	for _, g := range s.Segments {
		n += len(g.Tokens)
	}
	return n
}

// SubscribeRequest builds the wire request sent right after the stream opens.
func (s MSubscriptionSpec) SubscribeRequest(action int) MStreamRequest {
	return MStreamRequest{
		CorrelationID: s.CorrelationID,
		Action:        action,
		Params: MStreamParams{
			Mode:      s.Mode,
			TokenList: s.Segments,
		},
	}
}

// MStreamRequest is the JSON control message of the SmartAPI stream.
type MStreamRequest struct {
	CorrelationID string        `json:"correlationID"`
	Action        int           `json:"action"`
	Params        MStreamParams `json:"params"`
}

type MStreamParams struct {
	Mode      int           `json:"mode"`
	TokenList []MTokenGroup `json:"tokenList"`
}
