package stencil

import (
	"fmt"

	"github.com/LynnColeArt/sbench"
	"github.com/LynnColeArt/sbench/config"
	"github.com/LynnColeArt/sbench/storage"
)

// Config is the part of the arguments map every variant reads.
type Config struct {
	ISize, JSize, KSize int
	Halo                int
	Alignment           int
	Layout              storage.Layout
	Strategy            Strategy

	IBlockSize, JBlockSize int

	// Direction of the advecting velocity; vertical advection only.
	IShift, JShift int

	// Seed for the random input fields.
	Seed int64
}

// DefaultConfig returns the harness defaults.
func DefaultConfig() Config {
	return Config{
		ISize:      sbench.DefaultISize,
		JSize:      sbench.DefaultJSize,
		KSize:      sbench.DefaultKSize,
		Halo:       sbench.DefaultHalo,
		Alignment:  sbench.DefaultAlignment,
		Layout:     storage.LayoutIContiguous,
		Strategy:   StrategyAuto,
		IBlockSize: sbench.DefaultIBlockSize,
		JBlockSize: sbench.DefaultJBlockSize,
		IShift:     1,
		Seed:       42,
	}
}

// FromArgs reads a Config from the arguments map.
func FromArgs(args *config.Args) (Config, error) {
	var (
		c   Config
		err error
	)
	ints := []struct {
		key string
		dst *int
	}{
		{"isize", &c.ISize},
		{"jsize", &c.JSize},
		{"ksize", &c.KSize},
		{"halo", &c.Halo},
		{"alignment", &c.Alignment},
		{"ishift", &c.IShift},
		{"jshift", &c.JShift},
	}
	for _, f := range ints {
		if *f.dst, err = args.Int(f.key); err != nil {
			return Config{}, err
		}
	}
	if c.Seed, err = args.Int64("seed"); err != nil {
		return Config{}, err
	}
	layout, err := args.String("layout")
	if err != nil {
		return Config{}, err
	}
	if c.Layout, err = storage.ParseLayout(layout); err != nil {
		return Config{}, err
	}
	strategy, err := args.String("strategy")
	if err != nil {
		return Config{}, err
	}
	if c.Strategy, err = ParseStrategy(strategy); err != nil {
		return Config{}, err
	}
	if c.IBlockSize, c.JBlockSize, err = BlockSize(args); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

// BlockSize reads the tile shape from the arguments map.
func BlockSize(args *config.Args) (int, int, error) {
	ib, err := args.Int("i-blocksize")
	if err != nil {
		return 0, 0, err
	}
	jb, err := args.Int("j-blocksize")
	if err != nil {
		return 0, 0, err
	}
	if ib <= 0 || jb <= 0 {
		return 0, 0, fmt.Errorf("%dx%d: %w", ib, jb, sbench.ErrInvalidBlockSize)
	}
	return ib, jb, nil
}

// Validate checks sizes and tile shape.
func (c Config) Validate() error {
	if c.ISize <= 0 || c.JSize <= 0 || c.KSize <= 0 {
		return sbench.NewConfigurationError("Config", fmt.Sprintf("domain %dx%dx%d must be positive", c.ISize, c.JSize, c.KSize))
	}
	if c.Halo < 0 {
		return sbench.NewConfigurationError("Config", fmt.Sprintf("negative halo %d", c.Halo))
	}
	if c.IBlockSize <= 0 || c.JBlockSize <= 0 {
		return fmt.Errorf("%dx%d: %w", c.IBlockSize, c.JBlockSize, sbench.ErrInvalidBlockSize)
	}
	return nil
}

// StorageInfo computes the layout shared by every buffer of a variant.
func (c Config) StorageInfo() (*storage.Info, error) {
	align, err := storage.AlignmentOf(c.Alignment)
	if err != nil {
		return nil, err
	}
	return storage.Compute([storage.NDims]int{c.ISize, c.JSize, c.KSize}, c.Layout, storage.UniformHalo(c.Halo), align)
}
