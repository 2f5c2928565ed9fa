package tinymvcc

/*
TinyMVCC is the multi-version storage layer of a database engine. It stores every committed version of every key,
reads the database as of any committed version, and runs read-only and read-write transactions on top.

Every key of the versioned store is stored as its escaped bytes, a 0x00 0x00 terminator, and the bitwise complement of
the commit version in big-endian order. Versions of one key therefore sort newest first, so finding the value of a
key at a version is a single forward range scan returning one entry. See kv/util/codec.

The `tinymvcc` module is organized into the following packages:

* `kv/util/codec`: the versioned key encoding.
* `kv/util/engine_util`: helpers for the badger engine, column families as key prefixes.
* `kv/storage`: the Storage interface of a physical tier and its engines (memory, badger, leveldb), selected by name.
* `kv/transaction/mvcc`: version resolution on top of a tier, and MultiStore, the versioned store spread over a hot,
  a warm and a cold tier.
* `kv/transaction/versioned`: query and command transactions over the versioned store.
* `kv/transaction/unversioned`: the auxiliary store of single-version keys.
* `kv/transaction`: active transactions, which combine both stores and guard the life cycle of a command transaction.
* `kv/config`: configuration.
*/
