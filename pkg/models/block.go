package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BlockType identifies one of the five supported block kinds.
type BlockType string

const (
	BlockTypeReadCSV    BlockType = "read_csv"
	BlockTypeFilter     BlockType = "filter"
	BlockTypeEnrichLead BlockType = "enrich_lead"
	BlockTypeFindEmail  BlockType = "find_email"
	BlockTypeSaveCSV    BlockType = "save_csv"
)

// FilterOperator is the comparison applied by a filter block.
type FilterOperator string

const (
	FilterOperatorContains    FilterOperator = "contains"
	FilterOperatorNotContains FilterOperator = "not_contains"
	FilterOperatorEquals      FilterOperator = "equals"
	FilterOperatorNotEquals   FilterOperator = "not_equals"
	FilterOperatorGT          FilterOperator = "gt"
	FilterOperatorGTE         FilterOperator = "gte"
	FilterOperatorLT          FilterOperator = "lt"
	FilterOperatorLTE         FilterOperator = "lte"
)

// FindEmailMode selects which kind of address the remote service looks for.
type FindEmailMode string

const (
	FindEmailModeProfessional FindEmailMode = "PROFESSIONAL"
	FindEmailModePersonal     FindEmailMode = "PERSONAL"
)

// BlockParams is the discriminated parameter union. Each block type carries
// its own strongly-typed variant, decoded and validated at workflow-creation
// time so type mismatches never reach execution.
type BlockParams interface {
	BlockType() BlockType
}

type ReadCSVParams struct {
	Path string `json:"path" validate:"required"`
}

func (ReadCSVParams) BlockType() BlockType { return BlockTypeReadCSV }

type FilterParams struct {
	Column   string         `json:"column"   validate:"required"`
	Operator FilterOperator `json:"operator" validate:"required,oneof=contains not_contains equals not_equals gt gte lt lte"`
	Value    string         `json:"value"`
}

func (FilterParams) BlockType() BlockType { return BlockTypeFilter }

type EnrichLeadParams struct {
	// Struct maps output column name to a human-readable description of the
	// field the remote service should research, e.g. {"university": "undergrad university"}.
	Struct       map[string]string `json:"struct"        validate:"required,min=1"`
	ResearchPlan string            `json:"research_plan,omitempty"`
}

func (EnrichLeadParams) BlockType() BlockType { return BlockTypeEnrichLead }

type FindEmailParams struct {
	Mode FindEmailMode `json:"mode" validate:"required,oneof=PROFESSIONAL PERSONAL"`
}

func (FindEmailParams) BlockType() BlockType { return BlockTypeFindEmail }

type SaveCSVParams struct {
	Path string `json:"path" validate:"required"`
}

func (SaveCSVParams) BlockType() BlockType { return BlockTypeSaveCSV }

// Block is one step in a workflow: a typed transformation over a dataset.
type Block struct {
	ID     string      `json:"id"`
	Type   BlockType   `json:"type" validate:"required,oneof=read_csv filter enrich_lead find_email save_csv"`
	Name   string      `json:"name,omitempty"`
	Params BlockParams `json:"params" validate:"required"`
}

// blockEnvelope defers params decoding until the type discriminator is known.
type blockEnvelope struct {
	ID     string          `json:"id"`
	Type   BlockType       `json:"type"`
	Name   string          `json:"name,omitempty"`
	Params json.RawMessage `json:"params"`
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var envelope blockEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	params, err := unmarshalParams(envelope.Type, envelope.Params)
	if err != nil {
		return err
	}

	b.ID = envelope.ID
	b.Type = envelope.Type
	b.Name = envelope.Name
	b.Params = params

	return nil
}

func unmarshalParams(blockType BlockType, raw json.RawMessage) (BlockParams, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	switch blockType {
	case BlockTypeReadCSV:
		return decodeParams[ReadCSVParams](raw)
	case BlockTypeFilter:
		return decodeParams[FilterParams](raw)
	case BlockTypeEnrichLead:
		return decodeParams[EnrichLeadParams](raw)
	case BlockTypeFindEmail:
		params, err := decodeParams[FindEmailParams](raw)
		if err != nil {
			return nil, err
		}

		if params.Mode == "" {
			params.Mode = FindEmailModeProfessional
		}

		return params, nil
	case BlockTypeSaveCSV:
		return decodeParams[SaveCSVParams](raw)
	default:
		return nil, fmt.Errorf("unknown block type: %q", blockType)
	}
}

func decodeParams[T BlockParams](raw json.RawMessage) (T, error) {
	var params T

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&params); err != nil {
		return params, fmt.Errorf("invalid params for %s block: %w", params.BlockType(), err)
	}

	return params, nil
}

// Clone deep-copies the block, including the enrich struct map.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}

	clone := *b

	if params, ok := b.Params.(EnrichLeadParams); ok {
		structCopy := make(map[string]string, len(params.Struct))
		for k, v := range params.Struct {
			structCopy[k] = v
		}

		params.Struct = structCopy
		clone.Params = params
	}

	return &clone
}
