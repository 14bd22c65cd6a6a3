package update

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const feedSchemaID = "https://schemas.plugup.dev/feed.schema.json"

//go:embed feed.schema.json
var feedSchemaJSON []byte

var compiledFeedSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(feedSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal feed schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(feedSchemaID, doc); err != nil {
		return nil, fmt.Errorf("failed to add feed schema: %w", err)
	}
	s, err := compiler.Compile(feedSchemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compile feed schema: %w", err)
	}
	return s, nil
})

// ValidateFeed checks a raw feed response body against the feed schema.
func ValidateFeed(body []byte) error {
	s, err := compiledFeedSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}
	if err := s.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeed, err)
	}
	return nil
}
