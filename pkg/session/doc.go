// Package session owns the per-run state shared by every export job: the
// session token and the helper views created in the database.
//
// Helper views are named partarch_<token>_<table>, so concurrent runs
// against one database never touch each other's objects. Teardown drops
// every view the session still tracks and runs exactly once, whether the
// run succeeded, failed or was interrupted.
package session
