package checksum

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5 returns the hex-encoded MD5 digest of data. Note Station keys
// attachment payloads by this digest; it is an integrity check here,
// not a security primitive.
func MD5(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}
