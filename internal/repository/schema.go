package repository

// Schema definitions for the prediction history log.

const schemaPredictionsSQLite = `
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id TEXT,
    customer_data TEXT NOT NULL,
    churn_probability REAL NOT NULL,
    risk_level TEXT NOT NULL,
    will_churn INTEGER NOT NULL,
    prediction_type TEXT NOT NULL DEFAULT 'single',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
CREATE INDEX IF NOT EXISTS idx_predictions_risk ON predictions(risk_level);
`

const schemaPredictionsPostgres = `
CREATE TABLE IF NOT EXISTS predictions (
    id BIGSERIAL PRIMARY KEY,
    customer_id TEXT,
    customer_data TEXT NOT NULL,
    churn_probability DOUBLE PRECISION NOT NULL,
    risk_level TEXT NOT NULL,
    will_churn INTEGER NOT NULL,
    prediction_type TEXT NOT NULL DEFAULT 'single',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
CREATE INDEX IF NOT EXISTS idx_predictions_risk ON predictions(risk_level);
`

// Schemas returns the schema statements for a driver, in order.
func Schemas(driver string) []string {
	if driver == "postgres" {
		return []string{schemaPredictionsPostgres}
	}
	return []string{schemaPredictionsSQLite}
}
