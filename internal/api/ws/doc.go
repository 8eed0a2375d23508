// Package ws attaches websocket viewers to hosted terminals.
//
// A viewer first receives the scrollback as an output frame, then live
// output and execution state until the terminal ends:
//
//	-> {"type":"output","data":"..."}
//	-> {"type":"state","state":{"session_id":"...","active":true,"pending":{...}}}
//	-> {"type":"exit","lifecycle":"terminated","error":"..."}
//	<- {"type":"input","data":"ls\n"}
//	<- {"type":"resize","cols":120,"rows":40}
//	<- {"type":"ping"}
package ws
