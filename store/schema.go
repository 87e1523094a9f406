package store

// schemaSQL is the DDL for the resume and prompt tables.
const schemaSQL = `
-- Candidate records. One row per uploaded resume; extractor results land
-- as single-column updates as they complete.
CREATE TABLE IF NOT EXISTS resumes (
    id INTEGER PRIMARY KEY,
    filename TEXT NOT NULL,
    resume_text TEXT,
    master_category TEXT CHECK (master_category IN ('IT', 'NON_IT') OR master_category IS NULL),
    category TEXT,
    candidate_name TEXT,
    designation TEXT,
    job_role TEXT,
    experience TEXT,
    domain TEXT,
    mobile TEXT,
    email TEXT,
    education TEXT,
    location TEXT,
    skillset TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    indexed INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_resumes_indexed ON resumes(indexed);
CREATE INDEX IF NOT EXISTS idx_resumes_status ON resumes(status);

-- Skills-extraction prompts keyed by (master_category, category). The
-- master_category string form here is 'IT' / 'non IT' (legacy table
-- convention, distinct from the resume column). The category='other' row
-- per master_category is the mandatory fallback.
CREATE TABLE IF NOT EXISTS prompts (
    id INTEGER PRIMARY KEY,
    master_category TEXT NOT NULL,
    category TEXT,
    prompt TEXT NOT NULL,
    UNIQUE(master_category, category)
);
`
