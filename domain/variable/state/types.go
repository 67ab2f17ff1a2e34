// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"database/sql"
	"strconv"

	"github.com/juju/errors"

	"github.com/procession-engine/procession/domain/variable"
)

// dbVariable represents a row of the variable_instance table.
type dbVariable struct {
	VarID       string         `db:"id"`
	Name        string         `db:"name"`
	Type        string         `db:"type"`
	Value       sql.NullString `db:"value"`
	ExecutionID sql.NullString `db:"execution_id"`
	TaskID      sql.NullString `db:"task_id"`
	TenantID    sql.NullString `db:"tenant_id"`
}

// ID (persistence.Entity) returns the variable instance id.
func (v *dbVariable) ID() string {
	return v.VarID
}

func (v *dbVariable) toInstance() (variable.Instance, error) {
	value, err := decodeValue(v.Type, v.Value)
	if err != nil {
		return variable.Instance{}, errors.Annotatef(err, "variable %q", v.Name)
	}
	return variable.Instance{
		ID:    v.VarID,
		Name:  v.Name,
		Value: value,
		Owner: variable.Owner{
			ExecutionID: v.ExecutionID.String,
			TaskID:      v.TaskID.String,
		},
		TenantID: v.TenantID.String,
	}, nil
}

func toRow(v variable.Instance) (dbVariable, error) {
	encoded, err := encodeValue(v.Value)
	if err != nil {
		return dbVariable{}, errors.Annotatef(err, "variable %q", v.Name)
	}
	return dbVariable{
		VarID:       v.ID,
		Name:        v.Name,
		Type:        string(v.Value.Type),
		Value:       encoded,
		ExecutionID: sql.NullString{String: v.Owner.ExecutionID, Valid: v.Owner.ExecutionID != ""},
		TaskID:      sql.NullString{String: v.Owner.TaskID, Valid: v.Owner.TaskID != ""},
		TenantID:    sql.NullString{String: v.TenantID, Valid: v.TenantID != ""},
	}, nil
}

func encodeValue(v variable.Value) (sql.NullString, error) {
	switch v.Type {
	case variable.TypeNull:
		return sql.NullString{}, nil
	case variable.TypeString:
		s, ok := v.Data.(string)
		if !ok {
			return sql.NullString{}, errors.NotValidf("string value %v", v.Data)
		}
		return sql.NullString{String: s, Valid: true}, nil
	case variable.TypeInteger:
		i, ok := v.Data.(int64)
		if !ok {
			return sql.NullString{}, errors.NotValidf("integer value %v", v.Data)
		}
		return sql.NullString{String: strconv.FormatInt(i, 10), Valid: true}, nil
	case variable.TypeDouble:
		f, ok := v.Data.(float64)
		if !ok {
			return sql.NullString{}, errors.NotValidf("double value %v", v.Data)
		}
		return sql.NullString{String: strconv.FormatFloat(f, 'g', -1, 64), Valid: true}, nil
	case variable.TypeBoolean:
		b, ok := v.Data.(bool)
		if !ok {
			return sql.NullString{}, errors.NotValidf("boolean value %v", v.Data)
		}
		return sql.NullString{String: strconv.FormatBool(b), Valid: true}, nil
	}
	return sql.NullString{}, errors.NotValidf("value type %q", v.Type)
}

func decodeValue(typ string, raw sql.NullString) (variable.Value, error) {
	switch variable.ValueType(typ) {
	case variable.TypeNull:
		return variable.NullValue(), nil
	case variable.TypeString:
		return variable.StringValue(raw.String), nil
	case variable.TypeInteger:
		i, err := strconv.ParseInt(raw.String, 10, 64)
		if err != nil {
			return variable.Value{}, errors.Trace(err)
		}
		return variable.IntegerValue(i), nil
	case variable.TypeDouble:
		f, err := strconv.ParseFloat(raw.String, 64)
		if err != nil {
			return variable.Value{}, errors.Trace(err)
		}
		return variable.DoubleValue(f), nil
	case variable.TypeBoolean:
		b, err := strconv.ParseBool(raw.String)
		if err != nil {
			return variable.Value{}, errors.Trace(err)
		}
		return variable.BooleanValue(b), nil
	}
	return variable.Value{}, errors.NotValidf("value type %q", typ)
}
