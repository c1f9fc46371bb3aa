package contract

import (
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"rewardwatch/internal/model"
)

// DecoderConfig configures an EventDecoder.
type DecoderConfig struct {
	ABI     abi.ABI
	Event   string
	ChainID uint64
}

// EventDecoder turns raw logs of a single ABI event into EventRecords.
type EventDecoder struct {
	event   abi.Event
	indexed abi.Arguments
	chainID uint64
}

// NewEventDecoder resolves cfg.Event in cfg.ABI.
func NewEventDecoder(cfg DecoderConfig) (*EventDecoder, error) {
	name := cfg.Event
	if name == "" {
		name = DefaultEvent
	}
	event, ok := cfg.ABI.Events[name]
	if !ok {
		return nil, fmt.Errorf("event %s not found in abi (have %v)", name, EventNames(cfg.ABI))
	}
	if event.Anonymous {
		return nil, fmt.Errorf("event %s is anonymous and cannot be filtered by topic0", name)
	}

	return &EventDecoder{
		event:   event,
		indexed: indexedArguments(event.Inputs),
		chainID: cfg.ChainID,
	}, nil
}

// EventName returns the decoded event's name.
func (d *EventDecoder) EventName() string {
	return d.event.Name
}

// Topic0 returns the event signature hash.
func (d *EventDecoder) Topic0() common.Hash {
	return d.event.ID
}

// Decode converts a raw log into an EventRecord.
func (d *EventDecoder) Decode(log types.Log, ingestedAt time.Time) (model.EventRecord, error) {
	if len(log.Topics) == 0 {
		return model.EventRecord{}, fmt.Errorf("missing topics")
	}
	if log.Topics[0] != d.event.ID {
		return model.EventRecord{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}
	if len(log.Topics) != len(d.indexed)+1 {
		return model.EventRecord{}, fmt.Errorf("expected %d topics, got %d", len(d.indexed)+1, len(log.Topics))
	}

	args := make(map[string]interface{}, len(d.event.Inputs))
	if len(d.indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(args, d.indexed, log.Topics[1:]); err != nil {
			return model.EventRecord{}, fmt.Errorf("parse topics %s: %w", d.event.Name, err)
		}
	}
	if err := d.event.Inputs.UnpackIntoMap(args, log.Data); err != nil {
		return model.EventRecord{}, fmt.Errorf("unpack %s: %w", d.event.Name, err)
	}
	for key, value := range args {
		args[key] = normalizeArg(value)
	}

	return model.EventRecord{
		ChainID:     d.chainID,
		Event:       d.event.Name,
		Address:     log.Address.Hex(),
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		Removed:     log.Removed,
		Args:        args,
		IngestedAt:  ingestedAt.UTC().Format(time.RFC3339Nano),
		Raw: &model.RawLogRef{
			Topic0: log.Topics[0].Hex(),
			Data:   hexutil.Encode(log.Data),
		},
	}, nil
}

// normalizeArg keeps big integers exact and renders binary values as hex.
// Arrays and slices are normalized element-wise, tuples become maps keyed by
// component name.
func normalizeArg(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case *big.Int:
		if v == nil {
			return "0"
		}
		return v.String()
	case common.Address:
		return v.Hex()
	case common.Hash:
		return v.Hex()
	case []byte:
		return hexutil.Encode(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Array, reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			raw := make([]byte, rv.Len())
			for i := range raw {
				raw[i] = byte(rv.Index(i).Uint())
			}
			return hexutil.Encode(raw)
		}
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = normalizeArg(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		out := make(map[string]interface{}, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			name := field.Tag.Get("json")
			if name == "" {
				name = field.Name
			}
			out[name] = normalizeArg(rv.Field(i).Interface())
		}
		return out
	default:
		return value
	}
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
