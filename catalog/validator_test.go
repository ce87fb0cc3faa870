package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/coreledger/dispatch/catalog"
)

var paymentSchema = json.RawMessage(`{
	"type": "object",
	"required": ["payment_id", "amount"],
	"properties": {
		"payment_id": {"type": "string"},
		"amount":     {"type": "number"}
	}
}`)

func TestValidateAcceptsConformingPayload(t *testing.T) {
	v := catalog.NewValidator()

	err := v.Validate(paymentSchema, json.RawMessage(`{"payment_id":"PAY-1","amount":9.99}`))
	if err != nil {
		t.Errorf("Validate() returned error for conforming payload: %v", err)
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	v := catalog.NewValidator()

	err := v.Validate(paymentSchema, json.RawMessage(`{"payment_id":"PAY-1"}`))
	if err == nil {
		t.Error("Validate() accepted payload missing a required field")
	}
}

func TestValidateRejectsWrongType(t *testing.T) {
	v := catalog.NewValidator()

	err := v.Validate(paymentSchema, json.RawMessage(`{"payment_id":"PAY-1","amount":"lots"}`))
	if err == nil {
		t.Error("Validate() accepted payload with wrong field type")
	}
}

func TestValidateSkipsEmptySchema(t *testing.T) {
	v := catalog.NewValidator()

	if err := v.Validate(nil, json.RawMessage(`{"anything":true}`)); err != nil {
		t.Errorf("Validate() with nil schema returned error: %v", err)
	}
}

func TestValidateCachesCompiledSchemas(t *testing.T) {
	v := catalog.NewValidator()

	// Validate the same schema twice; the second call must hit the cache
	// and produce the same result.
	payload := json.RawMessage(`{"payment_id":"PAY-2","amount":1}`)
	for i := 0; i < 2; i++ {
		if err := v.Validate(paymentSchema, payload); err != nil {
			t.Fatalf("Validate() call %d returned error: %v", i+1, err)
		}
	}
}

func TestBuiltinDefinitionsAreWellFormed(t *testing.T) {
	v := catalog.NewValidator()

	for _, def := range catalog.Builtin() {
		if def.Name == "" {
			t.Error("builtin definition with empty name")
		}
		if !def.Group.Valid() {
			t.Errorf("builtin %q has invalid group %q", def.Name, def.Group)
		}
		if len(def.Schema) > 0 && len(def.Example) > 0 {
			if err := v.Validate(def.Schema, def.Example); err != nil {
				t.Errorf("builtin %q example does not satisfy its own schema: %v", def.Name, err)
			}
		}
	}
}
