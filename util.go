package statemap

// Util bundles the one level operations with a fixed KeyConfig.
type Util[S any] struct {
	Config KeyConfig[S]
}

// NewUtil binds cfg to the one level operations.
func NewUtil[S any](cfg KeyConfig[S]) Util[S] {
	return Util[S]{Config: cfg}
}

func (u Util[S]) Upsert(state Map[S], items ...S) Map[S] {
	return Upsert(state, items, u.Config)
}

func (u Util[S]) Replace(state Map[S], items []S) Map[S] {
	return Replace(state, items, u.Config)
}

func (u Util[S]) Remove(state Map[S], items ...S) Map[S] {
	return Remove(state, items, u.Config)
}

func (u Util[S]) GetItem(state Map[S], key any) (S, bool) {
	return GetItem(state, key, Projection[S, S]{})
}

func (u Util[S]) GetAsArray(state Map[S], p Projection[S, S]) []S {
	return GetAsArray(state, p)
}

// Util2D bundles the two level operations with a fixed KeyConfig.
type Util2D[S any] struct {
	Config KeyConfig[S]
}

// NewUtil2D binds cfg to the two level operations.
func NewUtil2D[S any](cfg KeyConfig[S]) Util2D[S] {
	return Util2D[S]{Config: cfg}
}

func (u Util2D[S]) Upsert(state Map2D[S], items ...S) Map2D[S] {
	return Upsert2D(state, items, u.Config)
}

func (u Util2D[S]) Replace(state Map2D[S], items []S, keyValues ...any) Map2D[S] {
	return Replace2D(state, items, u.Config, keyValues...)
}

func (u Util2D[S]) Remove(state Map2D[S], items ...S) Map2D[S] {
	return Remove2D(state, items, u.Config)
}

func (u Util2D[S]) GetItem(state Map2D[S], key1, key2 any) (S, bool) {
	return GetItem2D(state, key1, key2, Projection[S, S]{})
}

func (u Util2D[S]) GetAsArray(state Map2D[S], key any, p Projection[S, S]) []S {
	return GetAsArray2D(state, key, p)
}

// Util3D bundles the three level operations with a fixed KeyConfig.
type Util3D[S any] struct {
	Config KeyConfig[S]
}

// NewUtil3D binds cfg to the three level operations.
func NewUtil3D[S any](cfg KeyConfig[S]) Util3D[S] {
	return Util3D[S]{Config: cfg}
}

func (u Util3D[S]) Upsert(state Map3D[S], items ...S) Map3D[S] {
	return Upsert3D(state, items, u.Config)
}

func (u Util3D[S]) Replace(state Map3D[S], items []S, keyValues ...any) Map3D[S] {
	return Replace3D(state, items, u.Config, keyValues...)
}

func (u Util3D[S]) Remove(state Map3D[S], items ...S) Map3D[S] {
	return Remove3D(state, items, u.Config)
}

func (u Util3D[S]) GetItem(state Map3D[S], key1, key2, key3 any) (S, bool) {
	return GetItem3D(state, key1, key2, key3, Projection[S, S]{})
}

func (u Util3D[S]) GetAsArray(state Map3D[S], key1, key2 any, p Projection[S, S]) []S {
	return GetAsArray3D(state, key1, key2, p)
}
