package knowledge

import _ "embed"

// defaultCorpus ships a starter set of NL-to-SQL examples for the Sentinel
// schema so a fresh install can answer questions before anyone curates a
// corpus of their own.
//
//go:embed queries_example.sql
var defaultCorpus string
