package rpc

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/coreward/cartrpc/cmn"
	"github.com/coreward/cartrpc/group"
)

// Built-in opcodes mirroring the original's internal RPC table. Handlers
// live here rather than in package group so group has no dependency on rpc
// (rpc already depends on group for endpoint/rank validation; the reverse
// would cycle).
const (
	OpGrpCreate Opcode = iota + 1
	OpGrpDestroy
	OpUriLookup
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const builtinFormatSize = 2048

// GrpCreateInput/GrpCreateOutput are the wire payloads for OpGrpCreate. Wire
// encoding is unspecified by the distilled spec; this repo uses
// jsoniter-compatible JSON the way the rest of the stack serializes
// ambient/demo payloads.
type GrpCreateInput struct {
	GroupID       string       `json:"group_id"`
	Ranks         []group.Rank `json:"ranks"`
	InitiatorRank group.Rank   `json:"initiator_rank"`
}

type GrpCreateOutput struct {
	FailedRanks []group.Rank `json:"failed_ranks"`
	Rank        group.Rank   `json:"rank"`
	Status      cmn.Status   `json:"status"`
}

type GrpDestroyInput struct {
	GroupID       string     `json:"group_id"`
	InitiatorRank group.Rank `json:"initiator_rank"`
}

type GrpDestroyOutput struct {
	FailedRanks []group.Rank `json:"failed_ranks"`
	Rank        group.Rank   `json:"rank"`
	Status      cmn.Status   `json:"status"`
}

type UriLookupInput struct {
	GroupID string     `json:"group_id"`
	Rank    group.Rank `json:"rank"`
}

type UriLookupOutput struct {
	URI    string     `json:"uri"`
	Status cmn.Status `json:"status"`
}

func registerBuiltins() {
	format := Format{InputSize: builtinFormatSize, OutputSize: builtinFormatSize}
	mustRegisterBuiltin(OpGrpCreate, format, grpCreateHandler)
	mustRegisterBuiltin(OpGrpDestroy, format, grpDestroyHandler)
	mustRegisterBuiltin(OpUriLookup, format, uriLookupHandler)
}

func mustRegisterBuiltin(opc Opcode, format Format, h Handler) {
	if err := Register(opc, format, h, nil); err != nil {
		panic("rpc: built-in opcode registration failed: " + err.Error())
	}
}

// grpCreateHandler decodes a group-create request and acknowledges it.
// Actual membership bookkeeping and discovery belong to the group
// subsystem, an external collaborator here; this handler only validates the
// envelope and reports success back to the initiator, the shape
// CRT_GRP_CREATE's handler has in the original.
func grpCreateHandler(c *Call) cmn.Status {
	var in GrpCreateInput
	if err := json.Unmarshal(c.Input(), &in); err != nil {
		return cmn.StatusInval
	}
	out := GrpCreateOutput{Rank: in.InitiatorRank, Status: cmn.StatusOK}
	return encodeOutput(c, out)
}

func grpDestroyHandler(c *Call) cmn.Status {
	var in GrpDestroyInput
	if err := json.Unmarshal(c.Input(), &in); err != nil {
		return cmn.StatusInval
	}
	out := GrpDestroyOutput{Rank: in.InitiatorRank, Status: cmn.StatusOK}
	return encodeOutput(c, out)
}

func uriLookupHandler(c *Call) cmn.Status {
	var in UriLookupInput
	if err := json.Unmarshal(c.Input(), &in); err != nil {
		return cmn.StatusInval
	}
	out := UriLookupOutput{URI: "", Status: cmn.StatusUnreg}
	return encodeOutput(c, out)
}

func encodeOutput(c *Call, v any) cmn.Status {
	b, err := json.Marshal(v)
	if err != nil {
		return cmn.StatusInval
	}
	if len(b) > len(c.Output()) {
		return cmn.StatusOverflow
	}
	copy(c.Output(), b)
	return cmn.StatusOK
}
