package schema

import (
	"strings"
)

// Object type ids of the default directory schema.
const (
	TypeUser      uint16 = 1
	TypeGroup     uint16 = 2
	TypeSystem    uint16 = 3
	TypeInterface uint16 = 4
	TypeRole      uint16 = 5
)

// defaultSchemaYAML is a small directory: users and groups linked
// symmetrically, systems containing embedded network interfaces, and
// administrative roles.
const defaultSchemaYAML = `
namespaces:
  - {name: usernames, caseInsensitive: true}
  - {name: groupnames, caseInsensitive: true}
  - {name: hostnames, caseInsensitive: true}
  - {name: uids}
  - {name: gids}
  - {name: addresses}

types:
  - id: 1
    name: user
    description: User account
    label: username
    fields:
      - {code: 100, name: username, kind: string, namespace: usernames, minLength: 1, maxLength: 32, syntax: ia5String, badChars: " :"}
      - {code: 101, name: uid, kind: numeric, namespace: uids, min: 100, max: 65534}
      - code: 102
        name: password
        kind: password
        formats: [sha512crypt, ssha, ntlm, crypt]
        accept: [md5crypt, apachemd5, sha256crypt, lanman, bcrypt, argon2id]
        historySize: 5
      - {code: 103, name: groups, kind: invid, vector: true, target: group, mirror: members}
      - {code: 104, name: homeGroup, kind: invid, target: group}
      - {code: 105, name: emails, kind: string, vector: true, maxSize: 8, syntax: ia5String}
      - {code: 106, name: active, kind: boolean}
      - {code: 107, name: expires, kind: date}
      - {code: 108, name: manager, kind: invid, target: user, mirror: reports}
      - {code: 109, name: reports, kind: invid, vector: true, target: user, mirror: manager}
      - {code: 110, name: fullName, kind: string, maxLength: 128, syntax: directoryString}

  - id: 2
    name: group
    description: Unix group
    label: groupname
    fields:
      - {code: 200, name: groupname, kind: string, namespace: groupnames, minLength: 1, maxLength: 32, syntax: ia5String}
      - {code: 201, name: gid, kind: numeric, namespace: gids, min: 100, max: 65534}
      - {code: 202, name: members, kind: invid, vector: true, target: user, mirror: groups}
      - {code: 203, name: description, kind: string, maxLength: 256}

  - id: 3
    name: system
    description: Networked host
    label: hostname
    fields:
      - {code: 300, name: hostname, kind: string, namespace: hostnames, minLength: 1, maxLength: 63, okChars: "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"}
      - {code: 301, name: interfaces, kind: invid, vector: true, editInPlace: true, target: interface}
      - {code: 302, name: owner, kind: invid, target: user}
      - {code: 303, name: weight, kind: float, floatMin: 0, floatMax: 100}

  - id: 4
    name: interface
    description: Network interface of a system
    embedded: true
    label: name
    fields:
      - {code: 400, name: name, kind: string, maxLength: 16}
      - {code: 401, name: address, kind: ip, namespace: addresses, allowIPv6: true}
      - {code: 402, name: aliases, kind: ip, vector: true, maxSize: 4, namespace: addresses, allowIPv6: true}

  - id: 5
    name: role
    description: Administrative role
    label: rolename
    fields:
      - {code: 500, name: rolename, kind: string, maxLength: 64}
      - {code: 501, name: matrix, kind: permission}
      - {code: 502, name: options, kind: fieldOptions}
      - {code: 503, name: members, kind: invid, vector: true, target: user}
`

// DefaultSchema returns the built-in directory schema.
func DefaultSchema() *Schema {
	s, err := LoadSchemaFromYAML(strings.NewReader(defaultSchemaYAML))
	if err != nil {
		panic("schema: default schema is invalid: " + err.Error())
	}
	return s
}
