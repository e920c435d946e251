package engine

import (
	"sort"
	"time"

	"genie-audit/internal/domain"
)

// ClaimSet tracks which statement IDs have already been attributed to a
// message. It is shared across every conversation processed in one audit run
// so a statement is assigned to at most one message, and it is threaded
// through the resolver call chain rather than held as package state.
type ClaimSet struct {
	claimed map[string]struct{}
}

// NewClaimSet returns an empty claim set.
func NewClaimSet() *ClaimSet {
	return &ClaimSet{claimed: make(map[string]struct{})}
}

// Claim marks a statement as assigned. Returns false when the statement was
// already claimed; callers must treat a false return on a freshly matched
// statement as a logic defect, not a recoverable condition.
func (c *ClaimSet) Claim(statementID string) bool {
	if _, ok := c.claimed[statementID]; ok {
		return false
	}
	c.claimed[statementID] = struct{}{}
	return true
}

// Claimed reports whether a statement has been assigned.
func (c *ClaimSet) Claimed(statementID string) bool {
	_, ok := c.claimed[statementID]
	return ok
}

// Len returns the number of claimed statements.
func (c *ClaimSet) Len() int { return len(c.claimed) }

// candidate bundles one message with the context a matcher needs.
type candidate struct {
	msg       *domain.Message
	userEmail string // resolved via the audit log, may be empty
}

// matcher is one correlation strategy. It returns the statements it links to
// the message, considering only unclaimed pool entries. Matchers are pure:
// claiming happens in the resolver after a strategy produces a result.
type matcher func(c candidate, r *Correlator, claims *ClaimSet) []domain.QueryExecution

// Correlator assigns pool statements to messages using a strict priority
// chain of matching strategies.
type Correlator struct {
	pool   []domain.QueryExecution // sorted by start time, then statement ID
	byID   map[string]int          // statement ID -> pool index
	window time.Duration
}

// NewCorrelator copies and sorts the statement pool. Sorting by start time
// makes the earliest-start tie-break fall out of iteration order and keeps
// resolution independent of the order statements were fetched in.
func NewCorrelator(pool []domain.QueryExecution, window time.Duration) *Correlator {
	sorted := make([]domain.QueryExecution, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].StartTime.Before(sorted[j].StartTime)
		}
		return sorted[i].StatementID < sorted[j].StatementID
	})

	byID := make(map[string]int, len(sorted))
	for i := range sorted {
		byID[sorted[i].StatementID] = i
	}

	return &Correlator{pool: sorted, byID: byID, window: window}
}

// Pool returns the sorted statement pool.
func (r *Correlator) Pool() []domain.QueryExecution { return r.pool }

// Resolve links a message to the statements it caused. Strategies run in
// priority order and the first one producing a non-empty result wins; every
// returned statement is claimed immediately so no later message can reclaim
// it.
func (r *Correlator) Resolve(msg *domain.Message, userEmail string, claims *ClaimSet) []domain.QueryExecution {
	c := candidate{msg: msg, userEmail: userEmail}

	for _, match := range []matcher{
		matchDirectReference,
		matchConversationID,
		matchUserWindow,
		matchTimeOnly,
	} {
		result := match(c, r, claims)
		if len(result) == 0 {
			continue
		}
		for i := range result {
			claims.Claim(result[i].StatementID)
		}
		return result
	}
	return nil
}

// matchDirectReference resolves attachments that carry a statement ID. A
// direct reference is authoritative: it bypasses the time and user checks
// entirely.
func matchDirectReference(c candidate, r *Correlator, claims *ClaimSet) []domain.QueryExecution {
	var result []domain.QueryExecution
	for _, att := range c.msg.Attachments {
		if att.StatementID == "" {
			continue
		}
		idx, ok := r.byID[att.StatementID]
		if !ok || claims.Claimed(att.StatementID) {
			continue
		}
		result = append(result, r.pool[idx])
	}
	return result
}

// matchConversationID selects unclaimed statements stamped with the
// message's conversation ID. When the message has an origination timestamp
// the statement must also fall inside the correlation window; without a
// timestamp the conversation stamp alone suffices.
func matchConversationID(c candidate, r *Correlator, claims *ClaimSet) []domain.QueryExecution {
	var result []domain.QueryExecution
	msgTime := c.msg.CreatedTime()
	for i := range r.pool {
		q := &r.pool[i]
		if q.ConversationID == "" || q.ConversationID != c.msg.ConversationID {
			continue
		}
		if claims.Claimed(q.StatementID) {
			continue
		}
		if !msgTime.IsZero() && !inWindow(msgTime, q.StartTime, r.window) {
			continue
		}
		result = append(result, *q)
	}
	return result
}

// matchUserWindow selects unclaimed statements executed by the message's
// originating user inside the correlation window. The user comes from the
// audit log, not the statement record, because the message object alone may
// not carry one.
func matchUserWindow(c candidate, r *Correlator, claims *ClaimSet) []domain.QueryExecution {
	msgTime := c.msg.CreatedTime()
	if msgTime.IsZero() || c.userEmail == "" {
		return nil
	}
	var result []domain.QueryExecution
	for i := range r.pool {
		q := &r.pool[i]
		if q.ExecutedBy != c.userEmail || claims.Claimed(q.StatementID) {
			continue
		}
		if inWindow(msgTime, q.StartTime, r.window) {
			result = append(result, *q)
		}
	}
	return result
}

// matchTimeOnly is the last-resort fallback: window match with no user
// check, accepted only when no user information is available at all.
func matchTimeOnly(c candidate, r *Correlator, claims *ClaimSet) []domain.QueryExecution {
	msgTime := c.msg.CreatedTime()
	if msgTime.IsZero() || c.userEmail != "" {
		return nil
	}
	var result []domain.QueryExecution
	for i := range r.pool {
		q := &r.pool[i]
		if claims.Claimed(q.StatementID) {
			continue
		}
		if inWindow(msgTime, q.StartTime, r.window) {
			result = append(result, *q)
		}
	}
	return result
}

// inWindow enforces causality: a statement must start at or after the
// message, and no later than the window allows.
func inWindow(msgTime, queryStart time.Time, window time.Duration) bool {
	diff := queryStart.Sub(msgTime)
	return diff >= 0 && diff <= window
}
