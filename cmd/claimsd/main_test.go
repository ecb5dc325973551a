package main

import (
	"testing"

	"go.uber.org/fx"
)

func TestApplicationGraphIsValid(t *testing.T) {
	if err := fx.ValidateApp(options()...); err != nil {
		t.Fatalf("dependency graph does not resolve: %v", err)
	}
}
