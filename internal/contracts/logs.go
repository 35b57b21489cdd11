package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/marcus/po/internal/encoding"
	"github.com/marcus/po/internal/events"
)

// DecodedLog is a receipt log recognised by one of the contract ABIs.
type DecodedLog struct {
	Address common.Address
	Event   string
	Fields  map[string]any

	// Set for the matching events only.
	ID       *big.Int
	Deployed *DeployedAddresses
}

// LogDecoder matches receipt logs against the known event signatures.
type LogDecoder struct {
	byTopic map[common.Hash]eventRef
}

type eventRef struct {
	abi   abi.ABI
	event abi.Event
}

// NewLogDecoder indexes every event of every contract ABI.
func NewLogDecoder() (*LogDecoder, error) {
	all, err := parsed()
	if err != nil {
		return nil, err
	}
	d := &LogDecoder{byTopic: make(map[common.Hash]eventRef)}
	for _, a := range all {
		for _, ev := range a.Events {
			d.byTopic[ev.ID] = eventRef{abi: a, event: ev}
		}
	}
	return d, nil
}

// Decode returns the recognised logs in order. Unknown logs are skipped.
func (d *LogDecoder) Decode(logs []*types.Log) ([]DecodedLog, error) {
	var out []DecodedLog
	for _, lg := range logs {
		if lg == nil || len(lg.Topics) == 0 {
			continue
		}
		ref, ok := d.byTopic[lg.Topics[0]]
		if !ok {
			continue
		}

		fields := make(map[string]any)
		var indexed abi.Arguments
		for _, in := range ref.event.Inputs {
			if in.Indexed {
				indexed = append(indexed, in)
			}
		}
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			return nil, fmt.Errorf("decode %s topics: %w", ref.event.Name, err)
		}
		if len(lg.Data) > 0 {
			if err := ref.event.Inputs.UnpackIntoMap(fields, lg.Data); err != nil {
				return nil, fmt.Errorf("decode %s data: %w", ref.event.Name, err)
			}
		}

		dl := DecodedLog{Address: lg.Address, Event: ref.event.Name, Fields: fields}
		switch ref.event.Name {
		case "NewProposal", "TaskCreated":
			dl.ID, _ = fields["id"].(*big.Int)
		case "TokenRequested":
			dl.ID, _ = fields["requestId"].(*big.Int)
		case "OrgDeployed":
			dl.Deployed = deployedFrom(fields)
		}
		out = append(out, dl)
	}
	return out, nil
}

func deployedFrom(f map[string]any) *DeployedAddresses {
	addr := func(k string) common.Address {
		a, _ := f[k].(common.Address)
		return a
	}
	d := &DeployedAddresses{
		Executor:              addr("executor"),
		HybridVoting:          addr("hybridVoting"),
		DirectDemocracyVoting: addr("directDemocracyVoting"),
		QuickJoin:             addr("quickJoin"),
		ParticipationToken:    addr("participationToken"),
		TaskManager:           addr("taskManager"),
		EducationHub:          addr("educationHub"),
		PaymentManager:        addr("paymentManager"),
		EligibilityModule:     addr("eligibilityModule"),
		ToggleModule:          addr("toggleModule"),
	}
	if id, ok := f["orgId"].([32]byte); ok {
		d.OrgID = common.Hash(id)
	}
	d.TopHatID, _ = f["topHatId"].(*big.Int)
	d.RoleHatIDs, _ = f["roleHatIds"].([]*big.Int)
	return d
}

// Enrich fills in ids that only exist once the transaction is mined (new
// proposal, task and request ids, deployed org id) and stamps every event
// with the transaction hash. Events keep their declared order.
func (d *LogDecoder) Enrich(receipt *types.Receipt, evs []events.Event) []events.Event {
	if receipt == nil {
		return evs
	}
	decoded, _ := d.Decode(receipt.Logs)
	out := make([]events.Event, len(evs))
	copy(out, evs)

	used := make(map[int]bool)
	take := func(name string) *DecodedLog {
		for i := range decoded {
			if !used[i] && decoded[i].Event == name {
				used[i] = true
				return &decoded[i]
			}
		}
		return nil
	}

	txHash := strings.ToLower(receipt.TxHash.Hex())
	for i := range out {
		ev := &out[i]
		ev.TxHash = txHash
		switch ev.Kind {
		case events.ProposalCreated:
			if dl := take("NewProposal"); dl != nil && dl.ID != nil {
				ev.ProposalID = dl.ID.String()
				ev.Contract = encoding.LowerAddress(dl.Address)
			}
		case events.TaskCreated:
			if dl := take("TaskCreated"); dl != nil && dl.ID != nil {
				ev.TaskID = dl.ID.String()
				ev.Contract = encoding.LowerAddress(dl.Address)
			}
		case events.TokenRequestCreated:
			if dl := take("TokenRequested"); dl != nil && dl.ID != nil {
				ev.RequestID = dl.ID.String()
				ev.Contract = encoding.LowerAddress(dl.Address)
			}
		case events.OrgDeployed:
			if dl := take("OrgDeployed"); dl != nil && dl.Deployed != nil {
				ev.OrgID = strings.ToLower(dl.Deployed.OrgID.Hex())
				ev.Contract = encoding.LowerAddress(dl.Address)
			}
		}
	}
	return out
}
