// Package testing provides shared test utilities:
//   - FakeTracker: an in-memory tracker API behind an httptest server
//   - TestContext: a context bounded to the test
//
// Usage:
//
//	ft := testing.NewFakeTracker(t)
//	ft.Seed("cfme-5.10.0.33-20190312", "rhv43")
//	client, _ := tracker.NewClient(ft.URL())
package testing
