// Package files publishes run artifacts atomically.
//
// A Transaction stages each artifact in a temporary file beside its target
// and swaps them all in on Commit. Readers of the output directory see either
// the previous set of artifacts or the complete new set, never a mix or a
// partially written file.
//
// Example usage:
//
//	tx := files.NewTransaction(logger)
//	defer tx.Rollback()
//	if err := tx.Stage("out/trends.csv", writeTrends); err != nil {
//	    return err
//	}
//	if err := tx.Stage("out/audit.csv", writeAudit); err != nil {
//	    return err
//	}
//	return tx.Commit()
package files
