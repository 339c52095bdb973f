package count

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pizzaparty/slices/internal/topping"
)

// MarshalYAML writes c as a mapping from key to value.
func (c Count) MarshalYAML() (interface{}, error) {
	return c.Raw(), nil
}

// UnmarshalYAML reads a mapping from key to value. Undecodable keys are
// retained, see FromKeys.
func (c *Count) UnmarshalYAML(node *yaml.Node) error {
	var raw map[topping.Key]int
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decode count: %w", err)
	}
	*c = FromKeys(raw)
	return nil
}

// MarshalJSON writes c as an object from key to value.
func (c Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Raw())
}

// UnmarshalJSON reads an object from key to value.
func (c *Count) UnmarshalJSON(data []byte) error {
	var raw map[topping.Key]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode count: %w", err)
	}
	*c = FromKeys(raw)
	return nil
}
