package kvstore

import (
	"emberdb/internal/engine"
	"emberdb/pkg/snapshot"
)

// engineView adapts *engine.Engine's OpenSnapshotView, which returns a
// concrete *engine.Engine, onto the snapshot.Engine interface, which
// expects OpenSnapshotView to return the interface type itself. Every
// other snapshot.Engine method is satisfied directly by the embedded
// *engine.Engine's promoted methods.
type engineView struct {
	*engine.Engine
}

var _ snapshot.Engine = engineView{}

func (e engineView) OpenSnapshotView(dbname string, ignoreSet map[uint32]struct{}, fileIDEnd uint32) (snapshot.Engine, error) {
	v, err := e.Engine.OpenSnapshotView(dbname, ignoreSet, fileIDEnd)
	if err != nil {
		return nil, err
	}
	return engineView{v}, nil
}
