package types

// MirrorStatus tracks whether a financial mutation has been replicated onto
// the external append-only ledger. It lives on the primary-store row so an
// out-of-band sweep can retry pending or failed mirrors.
type MirrorStatus string

const (
	// MirrorPending means replication has been scheduled but not confirmed.
	MirrorPending MirrorStatus = "pending"
	// MirrorApplied means the external ledger holds the record (whether this
	// process created it or found it already present).
	MirrorApplied MirrorStatus = "applied"
	// MirrorFailed means the last replication attempt failed; the primary
	// write stands regardless.
	MirrorFailed MirrorStatus = "failed"
)

// NeedsMirror reports whether the status calls for a (re)replication attempt.
func (s MirrorStatus) NeedsMirror() bool {
	return s == MirrorPending || s == MirrorFailed || s == ""
}
