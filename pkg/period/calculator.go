package period

import (
	"fmt"
	"strings"
	"time"

	"careerloop-engine/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("period", fx.Provide(NewCalculator))

// Calculator is the single source of "this week" for every component.
type Calculator struct {
	loc *time.Location
	now func() time.Time
}

func NewCalculator(cfg *config.Config) (*Calculator, error) {
	name := strings.TrimSpace(cfg.Engine.Timezone)
	if name == "" {
		name = "UTC"
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load engine timezone %q: %w", name, err)
	}

	zap.L().Info("[Period] calculator configured", zap.String("timezone", loc.String()))
	return NewCalculatorIn(loc), nil
}

// NewCalculatorIn builds a calculator for a fixed location using the wall clock.
func NewCalculatorIn(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{loc: loc, now: time.Now}
}

// WithClock returns a copy of the calculator that reads "now" from fn.
func (c *Calculator) WithClock(fn func() time.Time) *Calculator {
	cp := *c
	cp.now = fn
	return &cp
}

func (c *Calculator) Location() *time.Location {
	return c.loc
}

func (c *Calculator) Now() time.Time {
	return c.now().In(c.loc)
}

func (c *Calculator) Current() Period {
	return Of(c.now(), c.loc)
}

func (c *Calculator) Of(t time.Time) Period {
	return Of(t, c.loc)
}

func (c *Calculator) Parse(key string) (Period, error) {
	return Parse(key, c.loc)
}

// Resolve parses key, or returns the current period when key is empty.
func (c *Calculator) Resolve(key string) (Period, error) {
	if strings.TrimSpace(key) == "" {
		return c.Current(), nil
	}
	return c.Parse(key)
}

// Today formats the current calendar date in the engine location.
func (c *Calculator) Today() string {
	return c.Now().Format(time.DateOnly)
}
