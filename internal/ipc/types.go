// Package ipc defines the daemon request/response types from spec §6
// (framed JSON, newline-delimited, one request per response) and an
// in-process Dispatcher that wires them to the core packages. The wire
// framing itself — reading/writing newline-delimited JSON off a socket
// or pipe — is out of scope per spec.md §1/§6; this package is the
// reference implementation of the request/response contract only.
package ipc

// RequestType discriminates the Request union by its "type" field.
type RequestType string

const (
	TypePing              RequestType = "Ping"
	TypeGetDiskStatus     RequestType = "GetDiskStatus"
	TypeGetPresigCount    RequestType = "GetPresigCount"
	TypeSign              RequestType = "Sign"
	TypeUpdateTxHash      RequestType = "UpdateTxHash"
	TypeListChildren      RequestType = "ListChildren"
	TypeImportAgentShard  RequestType = "ImportAgentShard"
	TypeImportChildShares RequestType = "ImportChildShares"
)

// Request is the daemon IPC envelope; exactly one of the typed payload
// fields is populated, selected by Type (mirrors the table in spec §6).
type Request struct {
	Type RequestType `json:"type"`

	Sign              *SignRequest              `json:"sign,omitempty"`
	UpdateTxHash      *UpdateTxHashRequest      `json:"update_tx_hash,omitempty"`
	ImportAgentShard  *ImportAgentShardRequest  `json:"import_agent_shard,omitempty"`
	ImportChildShares *ImportChildSharesRequest `json:"import_child_shares,omitempty"`
}

type SignRequest struct {
	MessageHashHex string `json:"message_hash"`
	ChainID        uint32 `json:"chain_id"`
	Description    string `json:"description"`
}

type UpdateTxHashRequest struct {
	PresigIndex uint32 `json:"presig_index"`
	TxHashHex   string `json:"tx_hash"`
}

// ImportAgentShardRequest provisions the daemon's long-lived agent
// master shard, a one-time operation performed out of band from any
// particular child or presig batch (decision recorded in DESIGN.md).
type ImportAgentShardRequest struct {
	AgentShardHex string `json:"agent_shard_hex"`
}

// AgentShareJSON is the hex-encoded wire form of a single presig agent
// share, as carried inside ImportChildSharesRequest.Shares.
type AgentShareJSON struct {
	RHex       string `json:"r"`
	KAgentHex  string `json:"k_agent"`
	ChiAgentHex string `json:"chi_agent"`
}

type ImportChildSharesRequest struct {
	ChildIDHex string           `json:"child_id"`
	Shares     []AgentShareJSON `json:"shares_json"`
	Replace    bool             `json:"replace"`
}

// Response is the daemon IPC envelope returned for every Request; at
// most one typed payload field is populated, or Err is set.
type Response struct {
	Pong          *PongResponse   `json:"pong,omitempty"`
	DiskStatus    *DiskStatus     `json:"disk_status,omitempty"`
	PresigCount   *PresigCount    `json:"presig_count,omitempty"`
	SignResult    *SignResult     `json:"sign_result,omitempty"`
	Children      *ChildrenResult `json:"children,omitempty"`
	Ok            bool            `json:"ok,omitempty"`
	Err           *ErrorResponse  `json:"error,omitempty"`
}

type PongResponse struct {
	Version string `json:"version"`
}

// DiskStatus answers GetDiskStatus; the pointer fields are nil when no
// disk is detected (Detected=false).
type DiskStatus struct {
	Detected         bool    `json:"detected"`
	ChildIDHex       *string `json:"child_id,omitempty"`
	PresigsRemaining *uint32 `json:"presigs_remaining,omitempty"`
	PresigsTotal     *uint32 `json:"presigs_total,omitempty"`
	DaysUntilExpiry  *int64  `json:"days_until_expiry,omitempty"`
	IsValid          *bool   `json:"is_valid,omitempty"`
}

type PresigCount struct {
	Remaining uint32 `json:"remaining"`
	Total     uint32 `json:"total"`
}

type SignResult struct {
	SignatureHex string `json:"signature"`
	PresigIndex  uint32 `json:"presig_index"`
	ProofHashHex string `json:"proof_hash"`
}

type ChildrenResult struct {
	ChildIDsHex []string `json:"child_ids"`
}

// ErrorResponse is the uniform failure shape from spec §6: a
// human-readable message plus an implementation-defined error_kind
// discriminator (spec §6 marks this field optional for implementations;
// this one sets it to the Kind whenever the error is an *errs.Error and
// leaves it empty otherwise).
type ErrorResponse struct {
	Message   string `json:"message"`
	ErrorKind string `json:"error_kind,omitempty"`
}
