package api

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/qri-io/jsonschema"
)

// maxBodyBytes caps request bodies; the largest legitimate one is a notes payload.
const maxBodyBytes = 128 * 1024

//go:embed schemas/*.json
var schemaFS embed.FS

var schemas = mustLoadSchemas()

var errEmptyBody = errors.New("request body is empty")

func mustLoadSchemas() map[string]*jsonschema.Schema {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		panic(err)
	}

	out := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			panic(err)
		}
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(b, rs); err != nil {
			panic(fmt.Sprintf("compile schema %s: %v", e.Name(), err))
		}
		out[strings.TrimSuffix(e.Name(), ".json")] = rs
	}
	return out
}

// decodeBody validates the request body against the named schema and decodes it into
// dst. An empty body is errEmptyBody so callers with optional bodies can tell it apart.
func decodeBody(ctx context.Context, r *http.Request, schema string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("request body larger than %d bytes", maxBodyBytes)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyBody
	}

	if err := validateJSON(ctx, schema, body); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func validateJSON(ctx context.Context, schema string, body []byte) error {
	rs, ok := schemas[schema]
	if !ok {
		return fmt.Errorf("no schema %q", schema)
	}

	verrs, err := rs.ValidateBytes(ctx, body)
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for i, v := range verrs {
			if i > 0 {
				sb.WriteString("; ")
			}
			if v.PropertyPath != "" && v.PropertyPath != "/" {
				sb.WriteString(v.PropertyPath)
				sb.WriteString(": ")
			}
			sb.WriteString(v.Message)
		}
		return errors.New(sb.String())
	}
	return nil
}
