package assets

import (
	_ "embed"
)

// ReferencesYAML is the default reference manifest. It names every reference
// image the controller looks for and its tuned threshold.
//
//go:embed references.yaml
var ReferencesYAML []byte
