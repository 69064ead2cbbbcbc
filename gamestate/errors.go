package gamestate

import (
	"github.com/rotisserie/eris"
)

var (
	ErrEntityDoesNotExist       = eris.New("entity does not exist")
	ErrComponentAlreadyOnEntity = eris.New("component already on entity")
	ErrComponentNotOnEntity     = eris.New("component not on entity")
	ErrDuplicateComponent       = eris.New("duplicate components is not allowed")
	ErrForeignComponent         = eris.New("component belongs to a different registry")
	ErrResourceEntity           = eris.New("the resource entity cannot be despawned")
)
