package component

import (
	"github.com/naoina/toml"
	"github.com/rotisserie/eris"
)

type schemaFile struct {
	Component []schemaComponent `toml:"component"`
}

type schemaComponent struct {
	Path        string   `toml:"path"`
	Type        string   `toml:"type"`
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Attributes  []string `toml:"attributes"`
}

// LoadSchema registers the components declared in a user schema:
//
//	[[component]]
//	path = "game::hp"
//	type = "Option<U32>"
//	attributes = ["Serializable", "Networked"]
func LoadSchema(r *Registry, data []byte) ([]Desc, error) {
	var file schemaFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "failed to parse component schema")
	}
	descs := make([]Desc, 0, len(file.Component))
	for _, c := range file.Component {
		pt, err := ParsePrimitiveType(c.Type)
		if err != nil {
			return nil, eris.Wrapf(err, "component %q", c.Path)
		}
		flags := make([]Flag, 0, len(c.Attributes))
		for _, name := range c.Attributes {
			f, err := ParseFlag(name)
			if err != nil {
				return nil, eris.Wrapf(err, "component %q", c.Path)
			}
			flags = append(flags, f)
		}
		desc, err := r.RegisterExternal(c.Path, pt,
			WithAttributes(flags...), WithName(c.Name), WithDescription(c.Description))
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	return descs, nil
}
