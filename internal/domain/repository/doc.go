// Package repository define los tipos del dominio OAuth y los contratos de
// persistencia que implementan los drivers (pg, memory).
//
// Los tokens nunca se guardan en claro: refresh y access tokens se buscan por
// hash (ver security/token.HashToken).
package repository
