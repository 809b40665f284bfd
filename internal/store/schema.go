package store

// Schema v1 - corpus and pairwise alignment results
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Scores the melodic lines were extracted from
CREATE TABLE IF NOT EXISTS scores (
  score_id TEXT PRIMARY KEY,
  musical_form TEXT NOT NULL DEFAULT '',
  file_extension TEXT NOT NULL DEFAULT ''
);

-- Melodic lines with raw and encoded feature tracks
CREATE TABLE IF NOT EXISTS melodic_lines (
  melodic_line_id TEXT PRIMARY KEY,
  score_id TEXT NOT NULL REFERENCES scores(score_id),
  line_number INTEGER NOT NULL DEFAULT 0,
  chromatic_tokens TEXT NOT NULL DEFAULT '',
  diatonic_tokens TEXT NOT NULL DEFAULT '',
  rhythmic_tokens TEXT NOT NULL DEFAULT '',
  chromatic_feature TEXT NOT NULL,
  diatonic_feature TEXT NOT NULL,
  rhythmic_feature TEXT NOT NULL,
  dictionary_version TEXT NOT NULL DEFAULT '',
  source_path TEXT NOT NULL DEFAULT '',
  ingested_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_melodic_lines_score ON melodic_lines(score_id);

-- Pairwise alignment distances; -1 marks a failed track
CREATE TABLE IF NOT EXISTS global_alignment (
  melodic_line_id_1 TEXT NOT NULL,
  melodic_line_id_2 TEXT NOT NULL,
  chromatic_rate REAL NOT NULL,
  diatonic_rate REAL NOT NULL,
  rhythmic_rate REAL NOT NULL,
  run_id TEXT NOT NULL DEFAULT '',
  CHECK (melodic_line_id_1 <> melodic_line_id_2)
);

CREATE INDEX IF NOT EXISTS idx_alignment_pair ON global_alignment(melodic_line_id_1, melodic_line_id_2);
CREATE INDEX IF NOT EXISTS idx_alignment_pair_reverse ON global_alignment(melodic_line_id_2, melodic_line_id_1);
`

// Schema v2 - run bookkeeping and the search attempt log
const schemaV2 = `
CREATE TABLE IF NOT EXISTS alignment_runs (
  run_id TEXT PRIMARY KEY,
  engine TEXT NOT NULL,
  workers INTEGER NOT NULL,
  batch_size INTEGER NOT NULL,
  total_pairs INTEGER NOT NULL,
  processed_pairs INTEGER NOT NULL DEFAULT 0,
  failed_invocations INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'running',
  error TEXT NOT NULL DEFAULT '',
  started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
  finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_alignment_runs_status ON alignment_runs(status);

CREATE TABLE IF NOT EXISTS recordings (
  recording_id TEXT PRIMARY KEY,
  musician_code TEXT NOT NULL DEFAULT '',
  instrument TEXT NOT NULL DEFAULT '',
  format TEXT NOT NULL DEFAULT '',
  melodic_line_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS queries (
  query_id INTEGER PRIMARY KEY,
  recording_id TEXT NOT NULL REFERENCES recordings(recording_id)
);

CREATE TABLE IF NOT EXISTS searches (
  search_id INTEGER PRIMARY KEY AUTOINCREMENT,
  query_id INTEGER NOT NULL REFERENCES queries(query_id),
  algorithm TEXT NOT NULL,
  search_type TEXT NOT NULL,
  sequence TEXT NOT NULL DEFAULT '',
  fe_user_ms REAL NOT NULL DEFAULT 0,
  fe_system_ms REAL NOT NULL DEFAULT 0,
  fe_clock_ms REAL NOT NULL DEFAULT 0,
  alignment_user_ms REAL NOT NULL DEFAULT 0,
  alignment_system_ms REAL NOT NULL DEFAULT 0,
  alignment_clock_ms REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS search_results (
  search_id INTEGER NOT NULL REFERENCES searches(search_id),
  melodic_line_id TEXT NOT NULL,
  ranking_position INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_results_search ON search_results(search_id, ranking_position);
CREATE INDEX IF NOT EXISTS idx_searches_query ON searches(query_id);
`
