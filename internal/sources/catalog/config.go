// Package catalog implements a shop source described entirely by
// configuration: a search URL template, an item selector and a list of
// fields, each with a selector and a normalizer.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Supported response formats.
const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// Field kinds select the normalizer applied to an extracted value.
const (
	KindText        = "text"
	KindInt         = "int"
	KindPrice       = "price"
	KindStock       = "stock"
	KindDelivery    = "delivery"
	KindBrand       = "brand"
	KindDescription = "description"
	KindGrade       = "grade"
	KindNoise       = "noise"
	KindDecibels    = "decibels"
	KindImage       = "image"
	KindPath        = "path"
	KindURL         = "url"
)

var knownKinds = map[string]bool{
	KindText: true, KindInt: true, KindPrice: true, KindStock: true,
	KindDelivery: true, KindBrand: true, KindDescription: true, KindGrade: true,
	KindNoise: true, KindDecibels: true, KindImage: true, KindPath: true, KindURL: true,
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid catalog config")

// Config describes one shop.
type Config struct {
	Name     string `mapstructure:"name"`
	Scheme   string `mapstructure:"scheme"`
	Netloc   string `mapstructure:"netloc"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// SearchPath may contain {term} and {quantity}; both are query-escaped.
	SearchPath string `mapstructure:"search_path"`
	Method     string `mapstructure:"method"`
	Format     string `mapstructure:"format"`
	// Items is a CSS selector (html) or a dotted path to an array (json).
	Items        string  `mapstructure:"items"`
	Fields       []Field `mapstructure:"fields"`
	PreferPeriod bool    `mapstructure:"prefer_period"`
	// StripComments removes HTML comment markers before parsing; some shops
	// ship their listing commented out and reveal it with JavaScript.
	StripComments bool `mapstructure:"strip_comments"`

	Login *Login `mapstructure:"login"`
}

// Field maps one extracted value into the record under Name.
type Field struct {
	Name string `mapstructure:"name"`
	// Selector is relative to the item; empty means the item itself.
	Selector string `mapstructure:"selector"`
	// Attr reads an attribute instead of the element text.
	Attr string `mapstructure:"attr"`
	// Path is the dotted key inside a json item.
	Path string `mapstructure:"path"`
	Kind string `mapstructure:"kind"`
}

// Login posts credentials to Path. Hidden names fields, such as CSRF tokens,
// copied from the login page before posting.
type Login struct {
	Path          string   `mapstructure:"path"`
	UserField     string   `mapstructure:"user_field"`
	PasswordField string   `mapstructure:"password_field"`
	Hidden        []string `mapstructure:"hidden"`
}

// Validate fills defaults and rejects incomplete configs.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.Netloc == "" {
		return fmt.Errorf("%w: %s: netloc is required", ErrInvalidConfig, c.Name)
	}
	if c.SearchPath == "" {
		return fmt.Errorf("%w: %s: search_path is required", ErrInvalidConfig, c.Name)
	}
	if c.Method == "" {
		c.Method = "GET"
	}
	c.Method = strings.ToUpper(c.Method)
	if c.Method != "GET" && c.Method != "POST" {
		return fmt.Errorf("%w: %s: method must be GET or POST", ErrInvalidConfig, c.Name)
	}
	if c.Format == "" {
		c.Format = FormatHTML
	}
	if c.Format != FormatHTML && c.Format != FormatJSON {
		return fmt.Errorf("%w: %s: format must be html or json", ErrInvalidConfig, c.Name)
	}
	if c.Items == "" {
		return fmt.Errorf("%w: %s: items is required", ErrInvalidConfig, c.Name)
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("%w: %s: at least one field is required", ErrInvalidConfig, c.Name)
	}
	seen := make(map[string]bool, len(c.Fields))
	for i := range c.Fields {
		f := &c.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("%w: %s: field %d has no name", ErrInvalidConfig, c.Name, i)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %s: duplicate field %q", ErrInvalidConfig, c.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Kind == "" {
			f.Kind = KindText
		}
		if !knownKinds[f.Kind] {
			return fmt.Errorf("%w: %s: field %q has unknown kind %q", ErrInvalidConfig, c.Name, f.Name, f.Kind)
		}
		if c.Format == FormatJSON && f.Path == "" {
			return fmt.Errorf("%w: %s: json field %q needs a path", ErrInvalidConfig, c.Name, f.Name)
		}
	}
	if c.Login != nil {
		if c.Login.Path == "" {
			return fmt.Errorf("%w: %s: login.path is required", ErrInvalidConfig, c.Name)
		}
		if c.Login.UserField == "" {
			c.Login.UserField = "username"
		}
		if c.Login.PasswordField == "" {
			c.Login.PasswordField = "password"
		}
	}
	return nil
}
