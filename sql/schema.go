package sql

// LedgerSchema is the schema of the node's durable state. It is applied to
// fresh databases on first open.
//
// accounts is keyed by address and holds the latest balance and applied
// nonce. claims is keyed by the deterministic claim id. blocks is the
// ordered log of accepted blocks sufficient to replay the chain from
// genesis; height is the primary key, so sqlite itself enforces that no
// two accepted blocks share a height. applied_txs indexes transactions by
// id for replay protection and operator queries.
const LedgerSchema = `
CREATE TABLE accounts
(
    address        BLOB PRIMARY KEY,
    balance        INTEGER NOT NULL,
    nonce          INTEGER NOT NULL,
    height_updated INTEGER NOT NULL
);

CREATE TABLE claims
(
    id           BLOB PRIMARY KEY,
    owner        BLOB NOT NULL,
    height       INTEGER NOT NULL,
    state        INTEGER NOT NULL,
    allocated_at INTEGER NOT NULL,
    owner_claims INTEGER NOT NULL
);
CREATE INDEX claims_by_height ON claims (height);
CREATE INDEX claims_by_owner ON claims (owner, height);

CREATE TABLE blocks
(
    height INTEGER PRIMARY KEY,
    id     BLOB NOT NULL UNIQUE,
    block  BLOB NOT NULL
);

CREATE TABLE applied_txs
(
    id     BLOB PRIMARY KEY,
    height INTEGER NOT NULL,
    block  BLOB NOT NULL
);
CREATE INDEX applied_txs_by_height ON applied_txs (height);
`
