package config

// Theme holds the colors used when printing boards to a terminal.
// Values are hex strings like "#874BFD".
type Theme struct {
	Preset       string `yaml:"preset,omitempty"`
	Accent       string `yaml:"accent,omitempty"`
	ColumnBorder string `yaml:"column_border,omitempty"`
	Title        string `yaml:"title,omitempty"`
	Subtle       string `yaml:"subtle,omitempty"`
	Normal       string `yaml:"normal,omitempty"`
	Terminal     string `yaml:"terminal,omitempty"`
}

// DefaultTheme returns the default color scheme (purple theme)
func DefaultTheme() Theme {
	return Theme{
		Preset:       "default",
		Accent:       "#874BFD",
		ColumnBorder: "#5F87D7",
		Title:        "#D75FD7",
		Subtle:       "#585858",
		Normal:       "#D0D0D0",
		Terminal:     "#5FD75F",
	}
}

// MonochromeTheme returns a black and white color scheme
func MonochromeTheme() Theme {
	return Theme{
		Preset:       "monochrome",
		Accent:       "#FFFFFF",
		ColumnBorder: "#808080",
		Title:        "#FFFFFF",
		Subtle:       "#808080",
		Normal:       "#D0D0D0",
		Terminal:     "#FFFFFF",
	}
}

func presetTheme(name string) Theme {
	if name == "monochrome" {
		return MonochromeTheme()
	}
	return DefaultTheme()
}

// ApplyDefaults fills unset colors from the selected preset
func (t *Theme) ApplyDefaults() {
	preset := presetTheme(t.Preset)
	if t.Preset == "" {
		t.Preset = preset.Preset
	}
	if t.Accent == "" {
		t.Accent = preset.Accent
	}
	if t.ColumnBorder == "" {
		t.ColumnBorder = preset.ColumnBorder
	}
	if t.Title == "" {
		t.Title = preset.Title
	}
	if t.Subtle == "" {
		t.Subtle = preset.Subtle
	}
	if t.Normal == "" {
		t.Normal = preset.Normal
	}
	if t.Terminal == "" {
		t.Terminal = preset.Terminal
	}
}
