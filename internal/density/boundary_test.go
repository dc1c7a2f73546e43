package density

import (
	"testing"

	"shoalcore/testutil"
)

// TestBoundaryGuards keeps this package free of persistence and service
// imports; scoring code reads through narrow interfaces only.
func TestBoundaryGuards(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", func(ip string) bool {
		return testutil.PersistenceImportForbidden(ip) || testutil.ServiceImportForbidden(ip)
	}, "scoring packages must not reach a store or the service layer")
}
