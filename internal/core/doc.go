// Package core reconciles product datasheets against the catalogue.
//
// A datasheet is a spreadsheet whose first sheet holds products and whose
// second sheet holds variants. Each row either creates a record or
// bulk-updates every record matching a key, depending on the header:
//
//	id | name  | sku   | price          -> create products
//	id | product_id | sku | option_type -> create variants
//	sku | price                         -> update records where sku = cell[0]
//
// The package is independent of storage and transport. Persistence goes
// through [Repository] and [RunStore]; the web and CLI layers drive it via
// [Service].
//
// # Flow
//
//  1. [Classifier] splits header columns into attribute columns and
//     exclusion columns (headers containing a keyword such as option_type).
//  2. [Dispatch] routes each row to an [Action] using only the first two
//     header and row cells.
//  3. [Reconciler] applies the row and returns a [Stats] delta.
//  4. Exclusion cells go to the [ExceptionHandler] registered for their
//     keyword. The default [OptionTypeHandler] parses trees such as
//     "Color:red,blue Size:S" with [ParseOptions].
//  5. [Processor] folds the deltas and records a [Summary] on the run.
//
// Row failures never abort a run; they are counted in Stats.FailedQueries
// or Stats.Failed. Only context cancellation stops processing early.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Codes are grouped as DB, VAL, FILE and RUN.
package core
