package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"

	"pkg.world.dev/world-engine/ecstore/codec"
	"pkg.world.dev/world-engine/ecstore/component"
	"pkg.world.dev/world-engine/ecstore/gamestate"
	"pkg.world.dev/world-engine/ecstore/search/cql"
	"pkg.world.dev/world-engine/ecstore/snapshot"
	"pkg.world.dev/world-engine/ecstore/types"
)

type GetHealthResponse struct {
	IsServerRunning bool `json:"isServerRunning"`
}

func getHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(GetHealthResponse{IsServerRunning: true})
}

type ComponentInfo struct {
	ID         int    `json:"id"`
	Path       string `json:"path"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Attributes string `json:"attributes"`
}

func (s *Server) getComponents(ctx *fiber.Ctx) error {
	var result []ComponentInfo
	err := s.shared.With(func(w *gamestate.World) error {
		for _, desc := range w.Registry().Components() {
			result = append(result, componentInfo(desc))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ctx.JSON(result)
}

func componentInfo(desc component.Desc) ComponentInfo {
	typeName := desc.Type().String()
	if pt, ok := desc.PrimitiveType(); ok {
		typeName = pt.String()
	}
	return ComponentInfo{
		ID:         int(desc.ID()),
		Path:       desc.Path(),
		Name:       desc.Name(),
		Type:       typeName,
		Attributes: desc.Attributes().Flags.String(),
	}
}

type ArchetypeInfo struct {
	ID            int      `json:"id"`
	Components    []string `json:"components"`
	Entities      int      `json:"entities"`
	LayoutVersion uint64   `json:"layoutVersion"`
}

func (s *Server) getArchetypes(ctx *fiber.Ctx) error {
	var result []ArchetypeInfo
	err := s.shared.With(func(w *gamestate.World) error {
		for _, arch := range w.Archetypes() {
			paths := make([]string, 0, len(arch.Components()))
			for _, desc := range arch.Components() {
				paths = append(paths, desc.Path())
			}
			result = append(result, ArchetypeInfo{
				ID:            int(arch.ID()),
				Components:    paths,
				Entities:      arch.Len(),
				LayoutVersion: arch.LayoutVersion(),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return ctx.JSON(result)
}

// getSnapshot serializes the world. ?all=true includes components without the Serializable attribute.
func (s *Server) getSnapshot(ctx *fiber.Ctx) error {
	opts := s.snapOpts
	if ctx.QueryBool("all") {
		opts = append(append([]snapshot.Option(nil), opts...),
			snapshot.WithFilter(func(component.Desc) bool { return true }))
	}
	var data []byte
	err := s.shared.With(func(w *gamestate.World) error {
		var err error
		data, err = snapshot.Serialize(w, opts...)
		return err
	})
	if err != nil {
		return err
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(data)
}

type EntityResponse struct {
	ID          types.EntityID              `json:"id"`
	ArchetypeID int                         `json:"archetypeId"`
	Components  map[string]codec.RawMessage `json:"components"`
}

func (s *Server) getEntity(ctx *fiber.Ctx) error {
	id, err := types.ParseEntityID(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Bad Request - "+err.Error())
	}
	var result EntityResponse
	err = s.shared.With(func(w *gamestate.World) error {
		if !w.Exists(id) {
			return fiber.NewError(fiber.StatusNotFound, "entity "+id.String()+" does not exist")
		}
		result, err = entityResponse(w, id)
		return err
	})
	if err != nil {
		return err
	}
	return ctx.JSON(result)
}

func entityResponse(w *gamestate.World, id types.EntityID) (EntityResponse, error) {
	loc, ok := w.Location(id)
	if !ok {
		return EntityResponse{}, eris.Wrapf(gamestate.ErrEntityDoesNotExist, "entity %s", id)
	}
	bundle, err := w.Bundle(id)
	if err != nil {
		return EntityResponse{}, err
	}
	result := EntityResponse{
		ID:          id,
		ArchetypeID: int(loc.Archetype),
		Components:  make(map[string]codec.RawMessage, bundle.Len()),
	}
	for _, u := range bundle.Units() {
		bz, err := u.Desc().Encode(u.Value())
		if err != nil {
			return EntityResponse{}, eris.Wrapf(err, "entity %s", id)
		}
		result.Components[u.Desc().Path()] = bz
	}
	return result, nil
}

type QueryRequest struct {
	CQL string `json:"cql"`
}

type QueryResponse struct {
	Results []EntityResponse `json:"results"`
}

// postQuery returns every entity matching a CQL expression such as "CONTAINS(game::position)".
func (s *Server) postQuery(ctx *fiber.Ctx) error {
	req := new(QueryRequest)
	if err := ctx.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Bad Request - unparseable body")
	}
	result := QueryResponse{Results: make([]EntityResponse, 0)}
	err := s.shared.With(func(w *gamestate.World) error {
		resultFilter, err := cql.ParseForRegistry(req.CQL, w.Registry())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var eachErr error
		w.Search(resultFilter).Each(func(id types.EntityID) bool {
			var element EntityResponse
			element, eachErr = entityResponse(w, id)
			if eachErr != nil {
				return false
			}
			result.Results = append(result.Results, element)
			return true
		})
		return eachErr
	})
	if err != nil {
		return err
	}
	return ctx.JSON(result)
}
