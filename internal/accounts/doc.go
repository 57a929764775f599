// Package accounts defines the Settings Store and Credential Vault
// contracts (spec §6) as Go interfaces, plus the Resolver that
// implements internal/feeder.AccountResolver on top of them: the
// kind-matching, longest-root-prefix account lookup the original
// implements as database.py's find_client/items.match_client against
// settings.py's saved_clients()/saved_panels().
//
// Neither the settings store nor the credential vault is implemented in
// depth here — both remain named collaborators per the engine's scope
// boundary (spec §1: credential storage, login, and account management
// UI are out of scope). An in-memory reference implementation of each
// is provided for engine tests and single-process deployments.
package accounts
