package wire

import (
	"crypto/sha256"
	"reflect"
)

// --- NetworkAddress / TimestampedAddress ---

// NetworkAddress is the 26-byte peer address form used inside Version.
// The wire form prepends the 12-byte IPv6-mapped-IPv4 prefix before the 4
// IPv4 octets; IP is stored already in that 16-byte mapped form (see
// IPv4MappedBytes) so the codec is a plain raw copy.
type NetworkAddress struct {
	Services uint64
	IP       [16]byte
	Port     uint16
}

var networkAddressSchema = &Schema{
	Fields: []Field{
		{"Services", Uint64LE},
		{"IP", RawBytes(16)},
		{"Port", Uint16BE},
	},
	New: func() interface{} { return &NetworkAddress{} },
}

// TimestampedAddress extends NetworkAddress with a leading timestamp, as
// its own flat field list rather than a nested NetworkAddress — matching
// the source, which declares it as a distinct serializer with its own
// four ordered fields, not as NetworkAddress embedding.
type TimestampedAddress struct {
	Timestamp uint32
	Services  uint64
	IP        [16]byte
	Port      uint16
}

var timestampedAddressSchema = &Schema{
	Fields: []Field{
		{"Timestamp", Uint32LE},
		{"Services", Uint64LE},
		{"IP", RawBytes(16)},
		{"Port", Uint16BE},
	},
	New: func() interface{} { return &TimestampedAddress{} },
}

// --- Version ---

type Version struct {
	Version     int32
	Services    uint64
	Timestamp   int64
	AddrRecv    NetworkAddress
	AddrFrom    NetworkAddress
	Nonce       uint64
	UserAgent   string
	StartHeight int32
}

var VersionSchema = &Schema{
	Command: CmdVersion,
	Fields: []Field{
		{"Version", Int32LE},
		{"Services", Uint64LE},
		{"Timestamp", Int64LE},
		{"AddrRecv", Nested(networkAddressSchema)},
		{"AddrFrom", Nested(networkAddressSchema)},
		{"Nonce", Uint64LE},
		{"UserAgent", VarStr},
		{"StartHeight", Int32LE},
	},
	New: func() interface{} { return &Version{} },
}

// --- empty-payload messages ---

type VerAck struct{}
type GetAddr struct{}
type MemPool struct{}

var VerAckSchema = &Schema{Command: CmdVerAck, New: func() interface{} { return &VerAck{} }}
var GetAddrSchema = &Schema{Command: CmdGetAddr, New: func() interface{} { return &GetAddr{} }}
var MemPoolSchema = &Schema{Command: CmdMemPool, New: func() interface{} { return &MemPool{} }}

// --- Ping / Pong ---

type Ping struct{ Nonce uint64 }
type Pong struct{ Nonce uint64 }

var PingSchema = &Schema{
	Command: CmdPing,
	Fields:  []Field{{"Nonce", Uint64LE}},
	New:     func() interface{} { return &Ping{} },
}
var PongSchema = &Schema{
	Command: CmdPong,
	Fields:  []Field{{"Nonce", Uint64LE}},
	New:     func() interface{} { return &Pong{} },
}

// --- InventoryItem / InventoryVector / GetData / NotFound ---

type InventoryItem struct {
	Type uint32
	Hash Hash256
}

var inventoryItemSchema = &Schema{
	Fields: []Field{
		{"Type", Uint32LE},
		{"Hash", HashCodec},
	},
	New: func() interface{} { return &InventoryItem{} },
}

var inventoryItemType = reflect.TypeOf(InventoryItem{})

type InventoryVector struct{ Inventory []InventoryItem }
type GetData struct{ Inventory []InventoryItem }
type NotFound struct{ Inventory []InventoryItem }

var InventoryVectorSchema = &Schema{
	Command: CmdInv,
	Fields:  []Field{{"Inventory", List(inventoryItemSchema, inventoryItemType)}},
	New:     func() interface{} { return &InventoryVector{} },
}
var GetDataSchema = &Schema{
	Command: CmdGetData,
	Fields:  []Field{{"Inventory", List(inventoryItemSchema, inventoryItemType)}},
	New:     func() interface{} { return &GetData{} },
}
var NotFoundSchema = &Schema{
	Command: CmdNotFound,
	Fields:  []Field{{"Inventory", List(inventoryItemSchema, inventoryItemType)}},
	New:     func() interface{} { return &NotFound{} },
}

// --- AddressVector ---

type AddressVector struct{ Addresses []TimestampedAddress }

var timestampedAddressType = reflect.TypeOf(TimestampedAddress{})

var AddressVectorSchema = &Schema{
	Command: CmdAddr,
	Fields:  []Field{{"Addresses", List(timestampedAddressSchema, timestampedAddressType)}},
	New:     func() interface{} { return &AddressVector{} },
}

// --- OutPoint / TxIn / TxOut / Tx ---

type OutPoint struct {
	Hash  Hash256
	Index uint32
}

var outPointSchema = &Schema{
	Fields: []Field{
		{"Hash", HashCodec},
		{"Index", Uint32LE},
	},
	New: func() interface{} { return &OutPoint{} },
}

// DefaultSequence is the conventional TxIn.Sequence value absent
// replace-by-fee or locktime signaling.
const DefaultSequence uint32 = 0xFFFFFFFF

type TxIn struct {
	PreviousOutput  OutPoint
	SignatureScript string
	Sequence        uint32
}

var txInSchema = &Schema{
	Fields: []Field{
		{"PreviousOutput", Nested(outPointSchema)},
		{"SignatureScript", VarStr},
		{"Sequence", Uint32LE},
	},
	New: func() interface{} { return &TxIn{Sequence: DefaultSequence} },
}
var txInType = reflect.TypeOf(TxIn{})

type TxOut struct {
	Value    int64
	PkScript string
}

var txOutSchema = &Schema{
	Fields: []Field{
		{"Value", Int64LE},
		{"PkScript", VarStr},
	},
	New: func() interface{} { return &TxOut{} },
}
var txOutType = reflect.TypeOf(TxOut{})

type Tx struct {
	Version  uint32
	TxIn     []TxIn
	TxOut    []TxOut
	LockTime uint32
}

var TxSchema = &Schema{
	Command: CmdTx,
	Fields: []Field{
		{"Version", Uint32LE},
		{"TxIn", List(txInSchema, txInType)},
		{"TxOut", List(txOutSchema, txOutType)},
		{"LockTime", Uint32LE},
	},
	New: func() interface{} { return &Tx{} },
}

// Hash computes the transaction hash: reversed double-SHA-256 of the
// canonical serialization. All four fields participate — unlike
// BlockHeader, Tx's hash takes no field filter.
func (t *Tx) Hash() Hash256 {
	b, _ := TxSchema.Encode(t)
	h1 := sha256.Sum256(b)
	h2 := sha256.Sum256(h1[:])
	return reverseHash(Hash256(h2))
}

func reverseHash(h Hash256) Hash256 {
	var out Hash256
	for i := range h {
		out[i] = h[len(h)-1-i]
	}
	return out
}

// --- BlockHeader / Block / HeaderVector ---

var blockHeaderHashFields = []string{"Version", "PrevBlock", "MerkleRoot", "Timestamp", "Bits", "Nonce"}

type BlockHeader struct {
	Version    uint32
	PrevBlock  Hash256
	MerkleRoot Hash256
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
	TxnsCount  uint64
}

var blockHeaderSchema = &Schema{
	Fields: []Field{
		{"Version", Uint32LE},
		{"PrevBlock", HashCodec},
		{"MerkleRoot", HashCodec},
		{"Timestamp", Uint32LE},
		{"Bits", Uint32LE},
		{"Nonce", Uint32LE},
		{"TxnsCount", VarInt},
	},
	New: func() interface{} { return &BlockHeader{} },
}
var blockHeaderType = reflect.TypeOf(BlockHeader{})

// Hash computes the block header hash, excluding TxnsCount (which is not
// part of a block's identity — it only exists so headers messages are
// self-describing).
func (h *BlockHeader) Hash() Hash256 {
	b, _ := blockHeaderSchema.EncodeFields(h, blockHeaderHashFields)
	h1 := sha256.Sum256(b)
	h2 := sha256.Sum256(h1[:])
	return Hash256(h2)
}

type HeaderVector struct{ Headers []BlockHeader }

var HeaderVectorSchema = &Schema{
	Command: CmdHeaders,
	Fields:  []Field{{"Headers", List(blockHeaderSchema, blockHeaderType)}},
	New:     func() interface{} { return &HeaderVector{} },
}

// Block carries the same leading fields as BlockHeader, but TxnsCount is
// implicit in the list encoding of Txns rather than its own field.
type Block struct {
	Version    uint32
	PrevBlock  Hash256
	MerkleRoot Hash256
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
	Txns       []Tx
}

var txType = reflect.TypeOf(Tx{})

var BlockSchema = &Schema{
	Command: CmdBlock,
	Fields: []Field{
		{"Version", Uint32LE},
		{"PrevBlock", HashCodec},
		{"MerkleRoot", HashCodec},
		{"Timestamp", Uint32LE},
		{"Bits", Uint32LE},
		{"Nonce", Uint32LE},
		{"Txns", List(TxSchema, txType)},
	},
	New: func() interface{} { return &Block{} },
}

// Header returns the standalone BlockHeader view of a Block, for hashing
// or relaying via a headers message.
func (b *Block) Header() BlockHeader {
	return BlockHeader{
		Version:    b.Version,
		PrevBlock:  b.PrevBlock,
		MerkleRoot: b.MerkleRoot,
		Timestamp:  b.Timestamp,
		Bits:       b.Bits,
		Nonce:      b.Nonce,
		TxnsCount:  uint64(len(b.Txns)),
	}
}

// --- GetBlocks ---

type GetBlocks struct {
	Version     uint32
	HashCount   uint64
	BlockHashes []Hash256
	HashStop    Hash256
}

var GetBlocksSchema = &Schema{
	Command: CmdGetBlocks,
	Fields: []Field{
		{"Version", Uint32LE},
		{"HashCount", VarInt},
		{"BlockHashes", BlockLocator("BlockHashes", "HashCount")},
		{"HashStop", HashCodec},
	},
	New: func() interface{} { return &GetBlocks{} },
}

// NewGetBlocks builds a GetBlocks request at ProtocolVersion, deriving
// HashCount from the locator and setting HashStop to stop (the zero hash
// asks for as many blocks as the peer will send).
func NewGetBlocks(locator []Hash256, stop Hash256) *GetBlocks {
	return &GetBlocks{
		Version:     uint32(ProtocolVersion),
		HashCount:   uint64(len(locator)),
		BlockHashes: locator,
		HashStop:    stop,
	}
}

// --- command -> schema registry ---

var registry = map[string]*Schema{
	CmdVersion:   VersionSchema,
	CmdVerAck:    VerAckSchema,
	CmdPing:      PingSchema,
	CmdPong:      PongSchema,
	CmdInv:       InventoryVectorSchema,
	CmdAddr:      AddressVectorSchema,
	CmdGetData:   GetDataSchema,
	CmdNotFound:  NotFoundSchema,
	CmdTx:        TxSchema,
	CmdBlock:     BlockSchema,
	CmdHeaders:   HeaderVectorSchema,
	CmdMemPool:   MemPoolSchema,
	CmdGetAddr:   GetAddrSchema,
	CmdGetBlocks: GetBlocksSchema,
}

// SchemaFor looks up the schema registered for a command string. The
// bool is false for an unrecognized command, which is not an error at
// the framing layer.
func SchemaFor(command string) (*Schema, bool) {
	s, ok := registry[command]
	return s, ok
}
