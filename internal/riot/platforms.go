package riot

type Platform struct {
	Host   string
	Region string
}

var Platforms = map[string]Platform{
	"BR1":  {Host: "br.api.pvp.net", Region: "br"},
	"EUN1": {Host: "eune.api.pvp.net", Region: "eune"},
	"EUW1": {Host: "euw.api.pvp.net", Region: "euw"},
	"JP1":  {Host: "jp.api.pvp.net", Region: "jp"},
	"KR":   {Host: "kr.api.pvp.net", Region: "kr"},
	"LA1":  {Host: "lan.api.pvp.net", Region: "lan"},
	"LA2":  {Host: "las.api.pvp.net", Region: "las"},
	"NA1":  {Host: "na.api.pvp.net", Region: "na"},
	"OC1":  {Host: "oce.api.pvp.net", Region: "oce"},
	"TR1":  {Host: "tr.api.pvp.net", Region: "tr"},
	"RU":   {Host: "ru.api.pvp.net", Region: "ru"},
}

const globalHost = "global.api.pvp.net"
