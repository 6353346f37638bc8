// Package storage reads the candidate source and writes result artifacts.
//
// The on-disk layout is:
//
//	SOURCE/proxy.txt           candidate source, rewritten deduplicated after a run
//	RESULT/ALL/proxy.txt       every validated proxy
//	RESULT/proxy.json          per-country sample table
//	RESULT/country/<CC>.txt    validated proxies of one country
//	RESULT/report.md           run summary
package storage
