package di_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fd1az/dexops/internal/di"
)

type widget struct{ id int }

func TestToken_LazySingleton(t *testing.T) {
	c := di.NewContainer()
	tok := di.NewToken[*widget]("test.widget")

	var builds atomic.Int32
	di.RegisterToken(c, tok, func(di.ServiceRegistry) *widget {
		builds.Add(1)
		return &widget{id: 7}
	})

	if builds.Load() != 0 {
		t.Fatal("factory should not run before Get")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if w := di.GetToken(c, tok); w.id != 7 {
				t.Errorf("unexpected widget %+v", w)
			}
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("expected one build, got %d", builds.Load())
	}
}

func TestContainer_RegisterInstance(t *testing.T) {
	c := di.NewContainer()
	c.Register("config", "value")

	if !c.Has("config") {
		t.Fatal("expected config registered")
	}
	if got := c.Get("config").(string); got != "value" {
		t.Errorf("got %q", got)
	}
}

func TestContainer_MissingPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for missing service")
		}
	}()
	di.NewContainer().Get("missing")
}
