// Package fakes provides test doubles for the Azure Key Vault data plane.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior. They satisfy remote.SecretsAPI structurally.
//
// Usage:
//
//	fake := fakes.NewFakeSecretsClient()
//	fake.AddSecret("db-password", "hunter2")
//	backend := remote.NewAzureSDK(lister, remote.WithSecretsClientFactory(
//	    func(string) (remote.SecretsAPI, error) { return fake, nil }))
package fakes
